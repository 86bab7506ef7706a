package services

import (
	"math"

	"github.com/parcelworks/siteline/internal/models"
)

// Score computes a job's percent-complete from its per-section status
// snapshot. Complete sections count fully, Partial sections count half, and
// the denominator is the fixed section taxonomy size, so the result is
// deterministic for a given snapshot.
func Score(status map[models.Section]models.SectionRecord) int {
	var weight float64
	for _, section := range models.Sections {
		switch status[section].Status {
		case models.StatusComplete:
			weight++
		case models.StatusPartial:
			weight += 0.5
		}
	}
	return int(math.Round(weight / float64(models.SectionCount) * 100))
}
