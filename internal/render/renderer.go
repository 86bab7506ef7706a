package render

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parcelworks/siteline/internal/models"
	"github.com/parcelworks/siteline/internal/services"
)

// Section selection and ordering per report variant. The coordinator hands
// over the full snapshot; which sections appear, and in what order, is
// decided here.
var sectionOrder = map[models.ReportType][]models.Section{
	models.ReportFull: {
		models.SectionLand,
		models.SectionTitle,
		models.SectionZoning,
		models.SectionHazards,
		models.SectionGeotechnical,
		models.SectionInfrastructure,
		models.SectionClimate,
	},
	models.ReportSummary: {
		models.SectionZoning,
		models.SectionHazards,
		models.SectionLand,
	},
	models.ReportGeotechBrief: {
		models.SectionGeotechnical,
		models.SectionHazards,
	},
	models.ReportDueDiligencePack: {
		models.SectionLand,
		models.SectionTitle,
		models.SectionZoning,
		models.SectionHazards,
		models.SectionGeotechnical,
		models.SectionInfrastructure,
		models.SectionClimate,
	},
}

// document is the rendered artifact layout.
type document struct {
	Title        string            `json:"title"`
	Reference    string            `json:"reference"`
	PreparedFor  string            `json:"preparedFor,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Address      string            `json:"address"`
	TitleRef     string            `json:"titleReference,omitempty"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Boundary     interface{}       `json:"boundary,omitempty"`
	Completeness int               `json:"completeness"`
	Sections     []documentSection `json:"sections"`
	DataGaps     []models.DataGap  `json:"dataGaps,omitempty"`
	GeneratedAt  time.Time         `json:"generatedAt"`
}

type documentSection struct {
	Name        models.Section       `json:"name"`
	Status      models.SectionStatus `json:"status"`
	RetrievedAt *time.Time           `json:"retrievedAt,omitempty"`
	Data        json.RawMessage      `json:"data,omitempty"`
}

var titles = map[models.ReportType]string{
	models.ReportFull:             "Property Evaluation Report",
	models.ReportSummary:          "Property Summary",
	models.ReportGeotechBrief:     "Geotechnical Brief",
	models.ReportDueDiligencePack: "Due Diligence Pack",
}

// JSONRenderer renders evaluation snapshots as structured JSON documents.
type JSONRenderer struct{}

// NewJSONRenderer creates the built-in JSON renderer.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

// Render produces the artifact for the given variant. Sections outside the
// variant's selection are omitted entirely.
func (r *JSONRenderer) Render(snapshot *services.EvaluationSnapshot, reportType models.ReportType, options models.ReportOptions) ([]byte, string, error) {
	order, ok := sectionOrder[reportType]
	if !ok {
		return nil, "", fmt.Errorf("unknown report type %q", reportType)
	}

	doc := document{
		Title:        titles[reportType],
		Reference:    snapshot.Reference,
		PreparedFor:  options.PreparedFor,
		Notes:        options.Notes,
		Address:      snapshot.Address,
		TitleRef:     snapshot.TitleRef,
		Latitude:     snapshot.Latitude,
		Longitude:    snapshot.Longitude,
		Completeness: snapshot.Completeness,
		GeneratedAt:  snapshot.GeneratedAt,
	}
	if options.PreparedFor == "" {
		doc.PreparedFor = snapshot.Customer.Name
	}
	if options.IncludeBoundary && len(snapshot.Boundary) > 0 {
		doc.Boundary = snapshot.Boundary
	}

	for _, section := range order {
		entry := snapshot.Sections[section]
		doc.Sections = append(doc.Sections, documentSection{
			Name:        section,
			Status:      entry.Status,
			RetrievedAt: entry.RetrievedAt,
			Data:        entry.Payload,
		})
	}

	// The due diligence pack carries the gap appendix; other variants only
	// report the per-section status.
	if reportType == models.ReportDueDiligencePack {
		doc.DataGaps = snapshot.DataGaps
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal report document: %w", err)
	}
	return data, "application/json", nil
}
