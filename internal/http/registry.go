package http

import (
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"mri-console/internal/format"
	"mri-console/internal/registry"
	"mri-console/internal/schemas"
)

type analyticsResp struct {
	schemas.Analytics
	AvgConfidenceText string `json:"avg_confidence_text"`
	AvgProcessingText string `json:"avg_processing_text"`
}

func analyticsView(a schemas.Analytics) analyticsResp {
	return analyticsResp{
		Analytics:         a,
		AvgConfidenceText: format.PercentPtr(a.AvgConfidence),
		AvgProcessingText: format.Seconds(a.AvgProcessingMS),
	}
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.Backend.Analytics(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsView(a))
}

func (s *Server) models(w http.ResponseWriter, r *http.Request) {
	list, err := s.Backend.Models(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registry.Models(list))
}

type predictionsResp struct {
	Stats   registry.Stats     `json:"stats"`
	Matched int                `json:"matched"`
	Rows    []registry.ScanRow `json:"rows"`
}

func (s *Server) predictionsLimit(r *http.Request) int {
	limit := s.Settings.PredictionsLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	return limit
}

// predictions lists the data registry. Stats cover every fetched record;
// rows only the ones passing the filter.
func (s *Server) predictions(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Backend.Predictions(r.Context(), s.predictionsLimit(r))
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	q := r.URL.Query()
	matched := registry.Filter{Query: q.Get("q"), Class: q.Get("class")}.Apply(recs)
	writeJSON(w, http.StatusOK, predictionsResp{
		Stats:   registry.Summarize(recs),
		Matched: len(matched),
		Rows:    registry.Rows(matched),
	})
}

type overviewResp struct {
	Analytics analyticsResp       `json:"analytics"`
	Models    []registry.ModelRow `json:"models"`
	Stats     registry.Stats      `json:"stats"`
}

// overview fetches analytics, models and predictions concurrently; any
// failure fails the whole view.
func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	var (
		a      schemas.Analytics
		models []schemas.ModelInfo
		recs   []schemas.PredictionRecord
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		a, err = s.Backend.Analytics(ctx)
		return err
	})
	g.Go(func() (err error) {
		models, err = s.Backend.Models(ctx)
		return err
	})
	g.Go(func() (err error) {
		recs, err = s.Backend.Predictions(ctx, s.predictionsLimit(r))
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overviewResp{
		Analytics: analyticsView(a),
		Models:    registry.Models(models),
		Stats:     registry.Summarize(recs),
	})
}

func (s *Server) help(w http.ResponseWriter, r *http.Request) {
	if s.Help == nil {
		writeJSON(w, http.StatusServiceUnavailable, errResp{"help content unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"faq":    s.Help.Search(r.URL.Query().Get("q")),
		"guides": s.Help.Guides,
	})
}
