package schemas

import (
	"time"

	"mri-console/internal/classify"
)

// Analytics is the backend's aggregate view over stored predictions.
type Analytics struct {
	TotalPredictions int      `json:"total_predictions"`
	AvgConfidence    *float64 `json:"avg_confidence"` // percentage 0-100
	ActiveUsers      *int     `json:"active_users"`
	AvgProcessingMS  *float64 `json:"avg_processing_ms"`
}

type ModelInfo struct {
	Filename   string     `json:"filename"`
	Path       string     `json:"path,omitempty"`
	SizeBytes  int64      `json:"size_bytes,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	Active     bool       `json:"active,omitempty"`
}

type PredictionRecord struct {
	PredictionID       string                  `json:"prediction_id"`
	Filename           string                  `json:"filename,omitempty"`
	PredictedClass     string                  `json:"predicted_class,omitempty"`
	Confidence         *float64                `json:"confidence,omitempty"` // percentage 0-100
	ClassProbabilities classify.ProbabilityMap `json:"class_probabilities,omitempty"`
	ProcessingMS       *float64                `json:"processing_ms,omitempty"`
	CreatedAt          *time.Time              `json:"created_at,omitempty"`
	ImageData          *string                 `json:"image_data,omitempty"` // data URL
}

type User struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// ClassifyResponse is returned by the console after a scan upload.
type ClassifyResponse struct {
	ClassificationID string          `json:"classification_id,omitempty"`
	SessionID        string          `json:"session_id"`
	Filename         string          `json:"filename"`
	Result           classify.Result `json:"result"`
	Formatted        FormattedResult `json:"formatted"`
}

// FormattedResult mirrors Result with display strings.
type FormattedResult struct {
	Label      string            `json:"label"`
	Confidence string            `json:"confidence"`
	Scores     map[string]string `json:"scores"`
}
