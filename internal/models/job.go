package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobCreated        JobStatus = "created"
	JobInProgress     JobStatus = "in_progress"
	JobDataCollection JobStatus = "data_collection"
	JobReview         JobStatus = "review"
	JobComplete       JobStatus = "complete"
	JobCancelled      JobStatus = "cancelled"
	JobOnHold         JobStatus = "on_hold"
)

// ValidJobStatus reports whether s is a known lifecycle state.
func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobCreated, JobInProgress, JobDataCollection, JobReview,
		JobComplete, JobCancelled, JobOnHold:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
// Cancelled is the only hard-terminal state: a Complete job may be reopened
// to InProgress by an explicit status update.
func (s JobStatus) Terminal() bool {
	return s == JobCancelled
}

// CanTransitionTo reports whether a transition from s to next is legal.
// Cancelled and OnHold are reachable from any non-terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if !ValidJobStatus(next) {
		return false
	}
	if s.Terminal() {
		return false
	}
	if s == JobComplete {
		// Reopening is restricted to InProgress; everything else would
		// bypass the data-collection bookkeeping.
		return next == JobInProgress || next == JobCancelled || next == JobOnHold
	}
	return true
}

// GapSeverity is the severity hint attached to a recorded data gap.
type GapSeverity string

const (
	GapInfo     GapSeverity = "info"
	GapWarning  GapSeverity = "warning"
	GapCritical GapSeverity = "critical"
)

// DataGap records a missing or failed section on a Job for downstream
// reporting.
type DataGap struct {
	Section  Section     `json:"section"`
	Severity GapSeverity `json:"severity"`
	Detail   string      `json:"detail"`
}

// CustomerInfo is the billing/contact metadata attached to a Job.
type CustomerInfo struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// SectionRecord is one entry in a Job's per-section status snapshot.
type SectionRecord struct {
	Status      SectionStatus `json:"status"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
}

// Job is one billable engagement against a Location. Its DataStatus map is a
// snapshot of the location cache taken by the last data-collection run;
// refreshing the location does not retroactively change it.
type Job struct {
	ID           uuid.UUID                 `json:"id"`
	Reference    string                    `json:"reference"`
	LocationID   uuid.UUID                 `json:"locationId"`
	Customer     CustomerInfo              `json:"customer"`
	IntendedUse  string                    `json:"intendedUse,omitempty"`
	Owner        string                    `json:"owner,omitempty"`
	Status       JobStatus                 `json:"status"`
	DataStatus   map[Section]SectionRecord `json:"dataStatus"`
	Completeness int                       `json:"completeness"`
	DataGaps     []DataGap                 `json:"dataGaps,omitempty"`
	ReportIDs    []uuid.UUID               `json:"reportIds,omitempty"`
	Version      int64                     `json:"version"`
	CreatedAt    time.Time                 `json:"createdAt"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
	CompletedAt  *time.Time                `json:"completedAt,omitempty"`
}

// NewDataStatus returns a status snapshot with every tracked section marked
// NotStarted.
func NewDataStatus() map[Section]SectionRecord {
	out := make(map[Section]SectionRecord, SectionCount)
	for _, s := range Sections {
		out[s] = SectionRecord{Status: StatusNotStarted}
	}
	return out
}

// JobReference formats the human-readable reference for a year and sequence
// number, e.g. JOB-2026-00042.
func JobReference(year, seq int) string {
	return fmt.Sprintf("JOB-%d-%05d", year, seq)
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.DataStatus = make(map[Section]SectionRecord, len(j.DataStatus))
	for s, rec := range j.DataStatus {
		copied := rec
		if rec.LastUpdated != nil {
			t := *rec.LastUpdated
			copied.LastUpdated = &t
		}
		out.DataStatus[s] = copied
	}
	out.DataGaps = append([]DataGap(nil), j.DataGaps...)
	out.ReportIDs = append([]uuid.UUID(nil), j.ReportIDs...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
