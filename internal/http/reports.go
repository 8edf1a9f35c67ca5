package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mri-console/internal/db"
	"mri-console/internal/report"
)

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil || s.Blobs == nil {
		writeJSON(w, http.StatusServiceUnavailable, errResp{"reports disabled"})
		return
	}
	id := chi.URLParam(r, "id")
	c, err := s.Archive.GetClassification(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
		return
	}

	switch c.ReportStatus {
	case db.ReportPending:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": db.ReportPending})
		return
	case db.ReportFailed:
		writeJSON(w, http.StatusInternalServerError, errResp{"report rendering failed"})
		return
	}

	ref, err := s.Archive.LatestReport(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
		return
	}
	var rep report.Report
	if err := s.Blobs.GetJSON(r.Context(), ref.ObjectRef, &rep); err != nil {
		s.Log.Error("load report", zap.String("ref", ref.ObjectRef), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errResp{"report unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
