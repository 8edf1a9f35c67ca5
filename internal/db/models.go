package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mri-console/internal/classify"
)

// Report states for a classification.
const (
	ReportPending = "pending"
	ReportReady   = "ready"
	ReportFailed  = "failed"
)

type Classification struct {
	ID            string         `db:"id"`
	SessionID     string         `db:"session_id"`
	Filename      string         `db:"filename"`
	TopClass      string         `db:"top_class"`
	Confidence    float64        `db:"confidence"`
	Scores        []byte         `db:"scores"`
	Probabilities []byte         `db:"probabilities"`
	ImageRef      sql.NullString `db:"image_ref"`
	ReportStatus  string         `db:"report_status"`
	CreatedAt     time.Time      `db:"created_at"`
}

type Report struct {
	ID               string    `db:"id"`
	ClassificationID string    `db:"classification_id"`
	ObjectRef        string    `db:"object_ref"`
	CreatedAt        time.Time `db:"created_at"`
}

// NewClassification prepares a row for a reduced upload.
func NewClassification(id, sessionID, filename string, probs classify.ProbabilityMap, res classify.Result) (*Classification, error) {
	scores, err := json.Marshal(res.Scores)
	if err != nil {
		return nil, fmt.Errorf("encode scores: %w", err)
	}
	raw, err := json.Marshal(probs)
	if err != nil {
		return nil, fmt.Errorf("encode probabilities: %w", err)
	}
	return &Classification{
		ID:            id,
		SessionID:     sessionID,
		Filename:      filename,
		TopClass:      res.TopClass,
		Confidence:    res.ConfidencePercent,
		Scores:        scores,
		Probabilities: raw,
		ReportStatus:  ReportPending,
	}, nil
}

// Result rebuilds the reduced result stored in the row.
func (c *Classification) Result() (classify.Result, error) {
	res := classify.Result{TopClass: c.TopClass, ConfidencePercent: c.Confidence}
	if err := json.Unmarshal(c.Scores, &res.Scores); err != nil {
		return classify.Result{}, fmt.Errorf("decode scores for %s: %w", c.ID, err)
	}
	return res, nil
}

// ProbabilityMap returns the raw backend probabilities in their original
// order. The column is json, not jsonb, so Postgres keeps the key order.
func (c *Classification) ProbabilityMap() (classify.ProbabilityMap, error) {
	var p classify.ProbabilityMap
	if err := json.Unmarshal(c.Probabilities, &p); err != nil {
		return nil, fmt.Errorf("decode probabilities for %s: %w", c.ID, err)
	}
	return p, nil
}
