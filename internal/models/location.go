package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// SectionData is one cached provider payload on a Location.
// Payload is the raw JSON document returned by the provider adapter.
// RetrievedAt is nil until the section has been fetched at least once.
// LastError records why the most recent refresh attempt failed; it is
// cleared on a successful fetch and never clears the previous payload.
type SectionData struct {
	Payload     json.RawMessage `json:"payload,omitempty"`
	RetrievedAt *time.Time      `json:"retrievedAt,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
}

// Location is the canonical, shared record of one physical property and its
// cached external data. Locations are shared across jobs: they are created on
// first resolution, mutated only by section refreshes, and never deleted.
type Location struct {
	ID               uuid.UUID               `json:"id"`
	Address          string                  `json:"address"`
	TitleReference   *string                 `json:"titleReference,omitempty"`
	LegalDescription *string                 `json:"legalDescription,omitempty"`
	Latitude         float64                 `json:"latitude"`
	Longitude        float64                 `json:"longitude"`
	Boundary         orb.Ring                `json:"boundary,omitempty"`
	Sections         map[Section]SectionData `json:"sections"`
	Version          int64                   `json:"version"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// Section returns the cached data for a section, zero-valued if the section
// has never been touched.
func (l *Location) Section(s Section) SectionData {
	if l.Sections == nil {
		return SectionData{}
	}
	return l.Sections[s]
}

// Clone returns a deep copy of the location. Repositories hand out clones so
// callers can never mutate shared cache state without going through an
// update method.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	out := *l
	if l.TitleReference != nil {
		v := *l.TitleReference
		out.TitleReference = &v
	}
	if l.LegalDescription != nil {
		v := *l.LegalDescription
		out.LegalDescription = &v
	}
	if l.Boundary != nil {
		out.Boundary = make(orb.Ring, len(l.Boundary))
		copy(out.Boundary, l.Boundary)
	}
	out.Sections = make(map[Section]SectionData, len(l.Sections))
	for s, data := range l.Sections {
		copied := data
		if data.RetrievedAt != nil {
			t := *data.RetrievedAt
			copied.RetrievedAt = &t
		}
		if data.Payload != nil {
			copied.Payload = append(json.RawMessage(nil), data.Payload...)
		}
		out.Sections[s] = copied
	}
	return &out
}
