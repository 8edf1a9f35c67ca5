// Package report builds the clinical summary attached to a classification.
package report

import (
	"time"

	"mri-console/internal/classify"
	"mri-console/internal/format"
)

type Severity struct {
	Level string `json:"level"`
	Rank  int    `json:"rank"`
}

var (
	LowRisk      = Severity{Level: "Low Risk", Rank: 1}
	MediumRisk   = Severity{Level: "Medium Risk", Rank: 2}
	HighRisk     = Severity{Level: "High Risk", Rank: 3}
	CriticalRisk = Severity{Level: "Critical Risk", Rank: 4}
	UnknownRisk  = Severity{Level: "Unknown Risk", Rank: 0}
)

type classInfo struct {
	label           string
	severity        Severity
	recommendations []string
}

var classes = map[string]classInfo{
	classify.NonDemented: {
		label:    "No Disease",
		severity: LowRisk,
		recommendations: []string{
			"Continue regular health monitoring",
			"Maintain healthy lifestyle and cognitive activities",
			"Schedule follow-up scan in 12 months",
		},
	},
	classify.VeryMildDemented: {
		label:    "Very Mild",
		severity: MediumRisk,
		recommendations: []string{
			"Consult with neurologist for detailed assessment",
			"Consider cognitive training programs",
			"Schedule follow-up scan in 6 months",
			"Monitor for any cognitive changes",
		},
	},
	classify.MildDemented: {
		label:    "Mild",
		severity: HighRisk,
		recommendations: []string{
			"Immediate consultation with neurologist recommended",
			"Comprehensive neuropsychological testing advised",
			"Consider treatment options with healthcare provider",
			"Schedule follow-up scan in 3 months",
		},
	},
	classify.ModerateDemented: {
		label:    "Moderate",
		severity: CriticalRisk,
		recommendations: []string{
			"Urgent neurologist consultation required",
			"Comprehensive treatment plan needed",
			"Family counseling and support services recommended",
			"Schedule follow-up scan in 1-2 months",
		},
	},
}

// Label is the display name for a class; unknown classes keep their name.
func Label(class string) string {
	if c, ok := classes[class]; ok {
		return c.label
	}
	return class
}

func SeverityOf(class string) Severity {
	if c, ok := classes[class]; ok {
		return c.severity
	}
	return UnknownRisk
}

func Recommendations(class string) []string {
	if c, ok := classes[class]; ok {
		return append([]string(nil), c.recommendations...)
	}
	return []string{"Review the scan with a qualified clinician before acting on this result"}
}

// Input is everything Build needs about an archived classification.
type Input struct {
	ScanID       string
	SessionID    string
	Filename     string
	ModelVersion string
	ProcessingMS *float64
	ScannedAt    time.Time
	Result       classify.Result
}

type Score struct {
	Class   string  `json:"class"`
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
	Display string  `json:"display"`
}

type Report struct {
	ScanID          string    `json:"scan_id"`
	SessionID       string    `json:"session_id,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	ScanDate        string    `json:"scan_date"`
	Prediction      string    `json:"prediction"`
	Label           string    `json:"label"`
	Confidence      float64   `json:"confidence"`
	ConfidenceText  string    `json:"confidence_text"`
	Severity        Severity  `json:"severity"`
	ModelVersion    string    `json:"model_version"`
	ProcessingTime  string    `json:"processing_time"`
	Scores          []Score   `json:"scores"`
	Recommendations []string  `json:"recommendations"`
	Disclaimer      string    `json:"disclaimer"`
	GeneratedAt     time.Time `json:"generated_at"`
}

const disclaimer = "This report was produced by an automated screening model and is not a diagnosis. " +
	"Results must be reviewed by a qualified medical professional."

// Build assembles the report. now stamps GeneratedAt.
func Build(in Input, now time.Time) Report {
	scores := make([]Score, 0, len(classify.KnownClasses))
	for _, c := range classify.KnownClasses {
		v := in.Result.Scores.Of(c)
		scores = append(scores, Score{Class: c, Label: Label(c), Percent: v, Display: format.Percent(v)})
	}
	model := in.ModelVersion
	if model == "" {
		model = format.Placeholder
	}
	return Report{
		ScanID:          in.ScanID,
		SessionID:       in.SessionID,
		Filename:        in.Filename,
		ScanDate:        format.Timestamp(in.ScannedAt),
		Prediction:      in.Result.TopClass,
		Label:           Label(in.Result.TopClass),
		Confidence:      in.Result.ConfidencePercent,
		ConfidenceText:  format.Percent(in.Result.ConfidencePercent),
		Severity:        SeverityOf(in.Result.TopClass),
		ModelVersion:    model,
		ProcessingTime:  format.Seconds(in.ProcessingMS),
		Scores:          scores,
		Recommendations: Recommendations(in.Result.TopClass),
		Disclaimer:      disclaimer,
		GeneratedAt:     now.UTC(),
	}
}
