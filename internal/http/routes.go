package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"mri-console/internal/backend"
	"mri-console/internal/classify"
	"mri-console/internal/db"
	"mri-console/internal/help"
	"mri-console/internal/schemas"
	"mri-console/internal/session"
)

// Backend is the remote classification API.
type Backend interface {
	Predict(ctx context.Context, filename, contentType string, image io.Reader) (classify.ProbabilityMap, error)
	Analytics(ctx context.Context) (schemas.Analytics, error)
	Models(ctx context.Context) ([]schemas.ModelInfo, error)
	Predictions(ctx context.Context, limit int) ([]schemas.PredictionRecord, error)
	CreateUser(ctx context.Context, in schemas.CreateUserRequest) (schemas.User, error)
	ListUsers(ctx context.Context) ([]schemas.User, error)
	GetUser(ctx context.Context, id string) (schemas.User, error)
	UpdateUser(ctx context.Context, id string, in schemas.UpdateUserRequest) (schemas.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Archive persists classifications. Optional.
type Archive interface {
	Ping(ctx context.Context) error
	InsertClassification(ctx context.Context, c *db.Classification) error
	SetImageRef(ctx context.Context, id, ref string) error
	SetReportStatus(ctx context.Context, id, status string) error
	GetClassification(ctx context.Context, id string) (db.Classification, error)
	ListClassifications(ctx context.Context, sessionID string, limit int) ([]db.Classification, error)
	LatestReport(ctx context.Context, classificationID string) (db.Report, error)
}

// Blobs stores scans and reads rendered reports. Optional.
type Blobs interface {
	PutScan(ctx context.Context, classificationID, contentType string, data []byte) (string, error)
	GetJSON(ctx context.Context, ref string, out any) error
}

// ReportQueue schedules report rendering. Optional.
type ReportQueue interface {
	EnqueueReport(ctx context.Context, classificationID string) error
}

type Settings struct {
	Addr             string
	APIToken         string
	AllowedOrigins   []string
	MaxUploadBytes   int64
	PredictionsLimit int
}

type Server struct {
	Backend  Backend
	Archive  Archive
	Blobs    Blobs
	Queue    ReportQueue
	Sessions *session.Store
	Help     *help.Center
	Log      *zap.Logger
	Settings Settings
}

const sessionHeader = "X-Session-ID"

func NewServer(s *Server) *http.Server {
	return &http.Server{Addr: s.Settings.Addr, Handler: s.Routes()}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, AccessLog(s.Log), m.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.Settings.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", sessionHeader},
		ExposedHeaders:   []string{sessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/classify", s.classify)
	r.Get("/sessions/{id}/result", s.sessionResult)
	r.Get("/sessions/{id}/history", s.sessionHistory)
	r.Get("/reports/{id}", s.getReport)

	r.Get("/analytics", s.analytics)
	r.Get("/models", s.models)
	r.Get("/predictions", s.predictions)
	r.Get("/overview", s.overview)
	r.Get("/help", s.help)

	// Admin/API-token protected
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken(s.Settings.APIToken))
		r.Get("/users", s.listUsers)
		r.Post("/users", s.createUser)
		r.Get("/users/{id}", s.getUser)
		r.Put("/users/{id}", s.updateUser)
		r.Delete("/users/{id}", s.deleteUser)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if s.Archive != nil {
			if err := s.Archive.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeBackendError passes client errors from the backend through and turns
// everything else into 502.
func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		code := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			code = apiErr.Status
		}
		writeJSON(w, code, errResp{apiErr.Detail})
		return
	}
	s.Log.Warn("backend unavailable", zap.Error(err))
	writeJSON(w, http.StatusBadGateway, errResp{err.Error()})
}
