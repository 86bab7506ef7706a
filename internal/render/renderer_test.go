package render

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/services"
)

func testSnapshot() *services.EvaluationSnapshot {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	retrieved := now.Add(-time.Hour)

	sections := make(map[models.Section]services.SectionSnapshot, models.SectionCount)
	for _, section := range models.Sections {
		sections[section] = services.SectionSnapshot{
			Status:      models.StatusComplete,
			RetrievedAt: &retrieved,
			Payload:     json.RawMessage(`{"ok":true}`),
		}
	}
	sections[models.SectionTitle] = services.SectionSnapshot{Status: models.StatusNotAvailable}

	return &services.EvaluationSnapshot{
		JobID:        uuid.New(),
		Reference:    "JOB-2026-00042",
		Customer:     models.CustomerInfo{Name: "Meridian Developments"},
		Completeness: 86,
		DataGaps: []models.DataGap{
			{Section: models.SectionTitle, Severity: models.GapInfo, Detail: "no data source available"},
		},
		Address:     "12 Harbour View Road, Northcote",
		Latitude:    -36.8019,
		Longitude:   174.7507,
		Boundary:    orb.Ring{{174.75, -36.80}, {174.751, -36.80}, {174.751, -36.801}, {174.75, -36.80}},
		Sections:    sections,
		GeneratedAt: now,
	}
}

func renderToDocument(t *testing.T, reportType models.ReportType, options models.ReportOptions) document {
	t.Helper()
	data, contentType, err := NewJSONRenderer().Render(testSnapshot(), reportType, options)
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)

	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func sectionNames(doc document) []models.Section {
	names := make([]models.Section, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		names = append(names, s.Name)
	}
	return names
}

func TestRenderSummarySections(t *testing.T) {
	doc := renderToDocument(t, models.ReportSummary, models.ReportOptions{})

	assert.Equal(t, "Property Summary", doc.Title)
	assert.Equal(t, []models.Section{
		models.SectionZoning,
		models.SectionHazards,
		models.SectionLand,
	}, sectionNames(doc), "summary carries only its section subset, in order")
	assert.Empty(t, doc.DataGaps)
}

func TestRenderGeotechBriefSections(t *testing.T) {
	doc := renderToDocument(t, models.ReportGeotechBrief, models.ReportOptions{})

	assert.Equal(t, []models.Section{
		models.SectionGeotechnical,
		models.SectionHazards,
	}, sectionNames(doc))
}

func TestRenderFullSections(t *testing.T) {
	doc := renderToDocument(t, models.ReportFull, models.ReportOptions{})

	assert.Len(t, doc.Sections, models.SectionCount)
	assert.Equal(t, models.SectionLand, doc.Sections[0].Name, "land leads the full report")
	assert.Equal(t, 86, doc.Completeness)
	assert.Empty(t, doc.DataGaps, "only the due diligence pack carries the gap appendix")
}

func TestRenderDueDiligencePackGaps(t *testing.T) {
	doc := renderToDocument(t, models.ReportDueDiligencePack, models.ReportOptions{})

	assert.Len(t, doc.Sections, models.SectionCount)
	require.Len(t, doc.DataGaps, 1)
	assert.Equal(t, models.SectionTitle, doc.DataGaps[0].Section)
}

func TestRenderOptions(t *testing.T) {
	t.Run("prepared for defaults to customer", func(t *testing.T) {
		doc := renderToDocument(t, models.ReportFull, models.ReportOptions{})
		assert.Equal(t, "Meridian Developments", doc.PreparedFor)
	})

	t.Run("explicit prepared for wins", func(t *testing.T) {
		doc := renderToDocument(t, models.ReportFull, models.ReportOptions{PreparedFor: "Crestline Holdings"})
		assert.Equal(t, "Crestline Holdings", doc.PreparedFor)
	})

	t.Run("boundary omitted by default", func(t *testing.T) {
		doc := renderToDocument(t, models.ReportFull, models.ReportOptions{})
		assert.Nil(t, doc.Boundary)
	})

	t.Run("boundary included on request", func(t *testing.T) {
		doc := renderToDocument(t, models.ReportFull, models.ReportOptions{IncludeBoundary: true})
		assert.NotNil(t, doc.Boundary)
	})
}

func TestRenderUnknownType(t *testing.T) {
	_, _, err := NewJSONRenderer().Render(testSnapshot(), "postcard", models.ReportOptions{})
	assert.Error(t, err)
}
