package services

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/parcelworks/siteline/internal/models"
)

// SectionSnapshot is one section's state copied into an evaluation snapshot.
type SectionSnapshot struct {
	Status      models.SectionStatus `json:"status"`
	RetrievedAt *time.Time           `json:"retrievedAt,omitempty"`
	Payload     json.RawMessage      `json:"payload,omitempty"`
}

// EvaluationSnapshot is the immutable, denormalized view of a job and its
// location's cached data at generation time. Renderers consume snapshots
// only; nothing in a snapshot points back at live records.
type EvaluationSnapshot struct {
	JobID        uuid.UUID                          `json:"jobId"`
	Reference    string                             `json:"reference"`
	Customer     models.CustomerInfo                `json:"customer"`
	IntendedUse  string                             `json:"intendedUse,omitempty"`
	Completeness int                                `json:"completeness"`
	DataGaps     []models.DataGap                   `json:"dataGaps,omitempty"`
	Address      string                             `json:"address"`
	TitleRef     string                             `json:"titleReference,omitempty"`
	LegalDesc    string                             `json:"legalDescription,omitempty"`
	Latitude     float64                            `json:"latitude"`
	Longitude    float64                            `json:"longitude"`
	Boundary     orb.Ring                           `json:"boundary,omitempty"`
	Sections     map[models.Section]SectionSnapshot `json:"sections"`
	GeneratedAt  time.Time                          `json:"generatedAt"`
}

// BuildSnapshot denormalizes a job and its location into an evaluation
// snapshot valid at now.
func BuildSnapshot(job *models.Job, loc *models.Location, now time.Time) *EvaluationSnapshot {
	snap := &EvaluationSnapshot{
		JobID:        job.ID,
		Reference:    job.Reference,
		Customer:     job.Customer,
		IntendedUse:  job.IntendedUse,
		Completeness: job.Completeness,
		DataGaps:     append([]models.DataGap(nil), job.DataGaps...),
		Address:      loc.Address,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		Sections:     make(map[models.Section]SectionSnapshot, models.SectionCount),
		GeneratedAt:  now,
	}
	if loc.TitleReference != nil {
		snap.TitleRef = *loc.TitleReference
	}
	if loc.LegalDescription != nil {
		snap.LegalDesc = *loc.LegalDescription
	}
	if loc.Boundary != nil {
		snap.Boundary = make(orb.Ring, len(loc.Boundary))
		copy(snap.Boundary, loc.Boundary)
	}

	for _, section := range models.Sections {
		data := loc.Section(section)
		record := job.DataStatus[section]
		entry := SectionSnapshot{Status: record.Status}
		if entry.Status == "" {
			entry.Status = models.StatusNotStarted
		}
		if data.RetrievedAt != nil {
			t := *data.RetrievedAt
			entry.RetrievedAt = &t
		}
		if data.Payload != nil {
			entry.Payload = append(json.RawMessage(nil), data.Payload...)
		}
		snap.Sections[section] = entry
	}
	return snap
}
