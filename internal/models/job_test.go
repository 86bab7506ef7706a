package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobReference(t *testing.T) {
	assert.Equal(t, "JOB-2026-00001", JobReference(2026, 1))
	assert.Equal(t, "JOB-2026-00042", JobReference(2026, 42))
	assert.Equal(t, "JOB-2027-12345", JobReference(2027, 12345))
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobCreated, JobInProgress, true},
		{JobCreated, JobCancelled, true},
		{JobInProgress, JobOnHold, true},
		{JobOnHold, JobInProgress, true},
		{JobComplete, JobInProgress, true},
		{JobComplete, JobCancelled, true},
		{JobComplete, JobOnHold, true},
		{JobComplete, JobReview, false},
		{JobComplete, JobCreated, false},
		{JobCancelled, JobInProgress, false},
		{JobCancelled, JobCancelled, false},
		{JobCreated, "archived", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, JobCancelled.Terminal())
	assert.False(t, JobComplete.Terminal(), "complete jobs can be reopened")
	assert.False(t, JobCreated.Terminal())
}

func TestNewDataStatus(t *testing.T) {
	status := NewDataStatus()
	assert.Len(t, status, SectionCount)
	for _, section := range Sections {
		assert.Equal(t, StatusNotStarted, status[section].Status)
	}
}

func TestJobClone(t *testing.T) {
	now := time.Now().UTC()
	job := &Job{
		Reference:  "JOB-2026-00001",
		DataStatus: map[Section]SectionRecord{SectionZoning: {Status: StatusComplete, LastUpdated: &now}},
		DataGaps:   []DataGap{{Section: SectionTitle, Severity: GapInfo}},
	}

	clone := job.Clone()
	clone.DataStatus[SectionZoning] = SectionRecord{Status: StatusError}
	clone.DataGaps[0].Severity = GapCritical

	assert.Equal(t, StatusComplete, job.DataStatus[SectionZoning].Status)
	assert.Equal(t, GapInfo, job.DataGaps[0].Severity)
}

func TestMaxAgeFor(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, MaxAgeFor(SectionClimate))
	assert.Equal(t, 24*time.Hour, MaxAgeFor(SectionZoning))
	assert.Equal(t, 24*time.Hour, MaxAgeFor(SectionTitle))
}
