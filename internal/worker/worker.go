package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"mri-console/internal/db"
	"mri-console/internal/report"
	"mri-console/internal/tasks"
)

type Archive interface {
	GetClassification(ctx context.Context, id string) (db.Classification, error)
	RecordReport(ctx context.Context, classificationID, ref string) (db.Report, error)
	SetReportStatus(ctx context.Context, id, status string) error
}

type Reports interface {
	PutReport(ctx context.Context, classificationID string, v any) (string, error)
}

type Server struct {
	Archive Archive
	Reports Reports
	Log     *zap.Logger
	Now     func() time.Time
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRenderReport, s.handleRenderReport)
	return mux
}

func (s *Server) handleRenderReport(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParseRenderReport(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log := s.Log.With(zap.String("classification_id", p.ClassificationID))
	log.Info("rendering report")

	c, err := s.Archive.GetClassification(ctx, p.ClassificationID)
	if errors.Is(err, db.ErrNotFound) {
		log.Warn("classification not found, dropping task")
		return fmt.Errorf("classification %s: %w", p.ClassificationID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	res, err := c.Result()
	if err != nil {
		// corrupt row; retrying will not help
		log.Error("cannot decode classification", zap.Error(err))
		_ = s.Archive.SetReportStatus(ctx, c.ID, db.ReportFailed)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	rep := report.Build(report.Input{
		ScanID:    c.ID,
		SessionID: c.SessionID,
		Filename:  c.Filename,
		ScannedAt: c.CreatedAt,
		Result:    res,
	}, now())

	ref, err := s.Reports.PutReport(ctx, c.ID, rep)
	if err != nil {
		log.Warn("report upload failed", zap.Error(err))
		return err
	}
	if _, err := s.Archive.RecordReport(ctx, c.ID, ref); err != nil {
		return err
	}
	log.Info("report ready", zap.String("ref", ref), zap.String("severity", rep.Severity.Level))
	return nil
}

// Run blocks serving report tasks from Redis at addr.
func Run(addr string, concurrency int, s *Server) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: addr}, asynq.Config{
		Concurrency: concurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried < maxRetry && !errors.Is(err, asynq.SkipRetry) {
				return
			}
			p, perr := tasks.ParseRenderReport(t)
			if perr != nil {
				return
			}
			s.Log.Error("report task gave up", zap.String("classification_id", p.ClassificationID), zap.Error(err))
			_ = s.Archive.SetReportStatus(context.Background(), p.ClassificationID, db.ReportFailed)
		}),
	})
	return srv.Run(s.mux())
}
