// Package registry filters and summarizes prediction and model listings.
package registry

import (
	"strings"

	"mri-console/internal/classify"
	"mri-console/internal/format"
	"mri-console/internal/schemas"
)

// AllClasses disables the class filter.
const AllClasses = "all"

// legacyLabels maps older display labels stored by earlier backends.
var legacyLabels = map[string]string{
	"Normal":    classify.NonDemented,
	"Very Mild": classify.VeryMildDemented,
	"Mild":      classify.MildDemented,
	"Moderate":  classify.ModerateDemented,
}

// CanonicalClass folds legacy labels onto class names.
func CanonicalClass(s string) string {
	if c, ok := legacyLabels[s]; ok {
		return c
	}
	return s
}

type Filter struct {
	Query string
	Class string
}

// Match reports whether rec passes the query and class filter. The query
// matches the prediction id or filename, ignoring case. The class filter is
// an exact match on the stored class.
func (f Filter) Match(rec schemas.PredictionRecord) bool {
	q := strings.ToLower(f.Query)
	matchesSearch := strings.Contains(strings.ToLower(rec.PredictionID), q) ||
		strings.Contains(strings.ToLower(rec.Filename), q)
	matchesClass := f.Class == "" || f.Class == AllClasses || rec.PredictedClass == f.Class
	return matchesSearch && matchesClass
}

// Apply returns the matching records in their original order.
func (f Filter) Apply(recs []schemas.PredictionRecord) []schemas.PredictionRecord {
	out := make([]schemas.PredictionRecord, 0, len(recs))
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

type Stats struct {
	Total            int `json:"total"`
	NonDemented      int `json:"non_demented"`
	VeryMildDemented int `json:"very_mild_demented"`
	MildDemented     int `json:"mild_demented"`
	ModerateDemented int `json:"moderate_demented"`
}

// Summarize counts records per known class. Legacy labels count with their
// class; unknown classes only count toward Total.
func Summarize(recs []schemas.PredictionRecord) Stats {
	s := Stats{Total: len(recs)}
	for _, r := range recs {
		switch CanonicalClass(r.PredictedClass) {
		case classify.NonDemented:
			s.NonDemented++
		case classify.VeryMildDemented:
			s.VeryMildDemented++
		case classify.MildDemented:
			s.MildDemented++
		case classify.ModerateDemented:
			s.ModerateDemented++
		}
	}
	return s
}

// ScanRow is a prediction record prepared for listing.
type ScanRow struct {
	ID             string `json:"id"`
	Filename       string `json:"filename,omitempty"`
	ScanDate       string `json:"scan_date"`
	Prediction     string `json:"prediction,omitempty"`
	Confidence     string `json:"confidence"`
	ProcessingTime string `json:"processing_time"`
	Status         string `json:"status"`
	HasImage       bool   `json:"has_image"`
}

func Row(r schemas.PredictionRecord) ScanRow {
	row := ScanRow{
		ID:             r.PredictionID,
		Filename:       r.Filename,
		ScanDate:       format.Placeholder,
		Prediction:     r.PredictedClass,
		Confidence:     format.PercentPtr(r.Confidence),
		ProcessingTime: format.Seconds(r.ProcessingMS),
		Status:         "Completed",
		HasImage:       r.ImageData != nil && *r.ImageData != "",
	}
	if r.CreatedAt != nil {
		row.ScanDate = format.Timestamp(*r.CreatedAt)
	}
	return row
}

func Rows(recs []schemas.PredictionRecord) []ScanRow {
	out := make([]ScanRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, Row(r))
	}
	return out
}

// ModelRow is a model file prepared for listing.
type ModelRow struct {
	Name       string `json:"name"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Size       string `json:"size"`
	ModifiedAt string `json:"modified_at"`
	Status     string `json:"status"`
}

func Models(models []schemas.ModelInfo) []ModelRow {
	out := make([]ModelRow, 0, len(models))
	for _, m := range models {
		row := ModelRow{
			Name:       format.ModelName(m.Filename),
			Filename:   m.Filename,
			Path:       m.Path,
			Size:       format.Megabytes(m.SizeBytes),
			ModifiedAt: format.Placeholder,
			Status:     "Available",
		}
		if row.Path == "" {
			row.Path = format.Placeholder
		}
		if m.ModifiedAt != nil {
			row.ModifiedAt = format.Timestamp(*m.ModifiedAt)
		}
		if m.Active {
			row.Status = "Active"
		}
		out = append(out, row)
	}
	return out
}
