package models

import "time"

// Section identifies one of the tracked property data sections.
type Section string

const (
	SectionZoning         Section = "zoning"
	SectionHazards        Section = "hazards"
	SectionGeotechnical   Section = "geotechnical"
	SectionInfrastructure Section = "infrastructure"
	SectionClimate        Section = "climate"
	SectionLand           Section = "land"
	SectionTitle          Section = "title"
)

// Sections is the fixed taxonomy of tracked sections. It is the single
// source of truth for the section set: the completeness denominator, the
// refresh fan-out, and the status snapshot all derive from this slice.
var Sections = []Section{
	SectionZoning,
	SectionHazards,
	SectionGeotechnical,
	SectionInfrastructure,
	SectionClimate,
	SectionLand,
	SectionTitle,
}

// SectionCount is the size of the fixed section taxonomy.
var SectionCount = len(Sections)

// ValidSection reports whether s names a tracked section.
func ValidSection(s Section) bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

// Staleness windows per section. Climate data changes on a seasonal scale,
// everything else is re-fetched daily.
const (
	DefaultMaxAge = 24 * time.Hour
	ClimateMaxAge = 7 * 24 * time.Hour
)

// MaxAgeFor returns the staleness window for a section.
func MaxAgeFor(section Section) time.Duration {
	if section == SectionClimate {
		return ClimateMaxAge
	}
	return DefaultMaxAge
}

// SectionStatus is the per-section data status recorded on a Job. It is a
// snapshot taken when the job last synchronized with its location's cache,
// not a live view of the cache.
type SectionStatus string

const (
	StatusNotStarted   SectionStatus = "not_started"
	StatusPartial      SectionStatus = "partial"
	StatusComplete     SectionStatus = "complete"
	StatusNotAvailable SectionStatus = "not_available"
	StatusError        SectionStatus = "error"
)
