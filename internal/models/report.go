package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportType selects the rendered report variant. Each variant picks its own
// subset and ordering of sections; that choice lives in the renderer.
type ReportType string

const (
	ReportFull             ReportType = "full"
	ReportSummary          ReportType = "summary"
	ReportGeotechBrief     ReportType = "geotech_brief"
	ReportDueDiligencePack ReportType = "due_diligence_pack"
)

// ValidReportType reports whether t is a known report variant.
func ValidReportType(t ReportType) bool {
	switch t {
	case ReportFull, ReportSummary, ReportGeotechBrief, ReportDueDiligencePack:
		return true
	}
	return false
}

// ReportOptions are caller-supplied generation options passed through to the
// renderer.
type ReportOptions struct {
	IncludeBoundary bool   `json:"includeBoundary,omitempty"`
	PreparedFor     string `json:"preparedFor,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Report is one generated artifact for a Job. It is immutable once stored
// except for download bookkeeping.
type Report struct {
	ID               uuid.UUID     `json:"id"`
	JobID            uuid.UUID     `json:"jobId"`
	Type             ReportType    `json:"type"`
	Options          ReportOptions `json:"options"`
	StorageKey       string        `json:"storageKey"`
	ContentType      string        `json:"contentType"`
	SizeBytes        int64         `json:"sizeBytes"`
	DownloadCount    int           `json:"downloadCount"`
	LastDownloadedAt *time.Time    `json:"lastDownloadedAt,omitempty"`
	GeneratedAt      time.Time     `json:"generatedAt"`
}
