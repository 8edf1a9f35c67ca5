package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mri-console/internal/classify"
	"mri-console/internal/db"
	"mri-console/internal/format"
	"mri-console/internal/report"
	"mri-console/internal/schemas"
	"mri-console/internal/session"
)

// multipart framing allowance on top of the image limit
const formOverhead = 1 << 20

func (s *Server) uploadLimit() int64 {
	if s.Settings.MaxUploadBytes > 0 {
		return s.Settings.MaxUploadBytes
	}
	return classify.DefaultMaxUploadBytes
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	sid := r.Header.Get(sessionHeader)
	if !session.ValidID(sid) {
		sid = session.NewID()
	}
	w.Header().Set(sessionHeader, sid)

	limit := s.uploadLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errResp{classify.ErrImageTooLarge.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, errResp{"please select an image first"})
		return
	}
	defer file.Close()

	contentType := hdr.Header.Get("Content-Type")
	if err := classify.CheckUpload(contentType, hdr.Size, limit); err != nil {
		code := http.StatusUnsupportedMediaType
		if errors.Is(err, classify.ErrImageTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, code, errResp{err.Error()})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}

	probs, err := s.Backend.Predict(r.Context(), hdr.Filename, contentType, bytes.NewReader(data))
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if err := probs.Validate(); err != nil {
		writeJSON(w, http.StatusBadGateway, errResp{err.Error()})
		return
	}
	res, err := classify.Reduce(probs)
	if err != nil {
		// An empty map is a broken upload response, not a "no class" result.
		s.Log.Warn("unusable prediction", zap.String("session_id", sid), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errResp{err.Error()})
		return
	}

	id := uuid.NewString()
	if !s.archive(context.WithoutCancel(r.Context()), id, sid, hdr.Filename, contentType, data, probs, res) {
		id = ""
	}
	s.Sessions.Put(sid, session.Entry{ClassificationID: id, Filename: hdr.Filename, Result: res})

	s.Log.Info("classified scan",
		zap.String("session_id", sid),
		zap.String("classification_id", id),
		zap.String("top_class", res.TopClass),
		zap.Float64("confidence", res.ConfidencePercent),
	)
	writeJSON(w, http.StatusOK, schemas.ClassifyResponse{
		ClassificationID: id,
		SessionID:        sid,
		Filename:         hdr.Filename,
		Result:           res,
		Formatted:        formatResult(res),
	})
}

// archive records the classification, stores the scan and queues the report.
// Failures are logged; the caller still gets its result.
func (s *Server) archive(ctx context.Context, id, sid, filename, contentType string, data []byte, probs classify.ProbabilityMap, res classify.Result) bool {
	if s.Archive == nil {
		return false
	}
	log := s.Log.With(zap.String("classification_id", id))

	row, err := db.NewClassification(id, sid, filename, probs, res)
	if err == nil {
		err = s.Archive.InsertClassification(ctx, row)
	}
	if err != nil {
		log.Error("archive classification", zap.Error(err))
		return false
	}

	if s.Blobs != nil {
		ref, err := s.Blobs.PutScan(ctx, id, contentType, data)
		if err == nil {
			err = s.Archive.SetImageRef(ctx, id, ref)
		}
		if err != nil {
			log.Warn("store scan", zap.Error(err))
		}
	}
	// A row nobody will render must not stay pending.
	var qerr error
	if s.Queue == nil {
		qerr = errors.New("report queue not configured")
	} else {
		qerr = s.Queue.EnqueueReport(ctx, id)
	}
	if qerr != nil {
		log.Warn("enqueue report", zap.Error(qerr))
		if err := s.Archive.SetReportStatus(ctx, id, db.ReportFailed); err != nil {
			log.Error("mark report failed", zap.Error(err))
		}
	}
	return true
}

func formatResult(res classify.Result) schemas.FormattedResult {
	scores := make(map[string]string, len(classify.KnownClasses))
	for _, c := range classify.KnownClasses {
		scores[c] = format.Percent(res.Scores.Of(c))
	}
	return schemas.FormattedResult{
		Label:      report.Label(res.TopClass),
		Confidence: format.Percent(res.ConfidencePercent),
		Scores:     scores,
	}
}

func (s *Server) sessionResult(w http.ResponseWriter, r *http.Request) {
	e, ok := s.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errResp{"no result for session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": e, "formatted": formatResult(e.Result)})
}

type historyItem struct {
	ClassificationID string                  `json:"classification_id"`
	Filename         string                  `json:"filename"`
	Result           classify.Result         `json:"result"`
	Probabilities    classify.ProbabilityMap `json:"probabilities"`
	ReportStatus     string                  `json:"report_status"`
	CreatedAt        string                  `json:"created_at"`
}

func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, errResp{"archive disabled"})
		return
	}
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	rows, err := s.Archive.ListClassifications(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
		return
	}
	out := make([]historyItem, 0, len(rows))
	for _, c := range rows {
		res, err := c.Result()
		var probs classify.ProbabilityMap
		if err == nil {
			probs, err = c.ProbabilityMap()
		}
		if err != nil {
			s.Log.Warn("skip undecodable classification", zap.String("id", c.ID), zap.Error(err))
			continue
		}
		out = append(out, historyItem{
			ClassificationID: c.ID,
			Filename:         c.Filename,
			Result:           res,
			Probabilities:    probs,
			ReportStatus:     c.ReportStatus,
			CreatedAt:        format.Timestamp(c.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
