package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")

// Archive stores reduced classifications and their rendered reports.
type Archive struct {
	DB *sqlx.DB
}

func NewArchive(dbx *sqlx.DB) *Archive {
	return &Archive{DB: dbx}
}

func (a *Archive) Ping(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}

func (a *Archive) InsertClassification(ctx context.Context, c *Classification) error {
	_, err := a.DB.NamedExecContext(ctx, `insert into classifications
		(id, session_id, filename, top_class, confidence, scores, probabilities, image_ref, report_status)
		values (:id, :session_id, :filename, :top_class, :confidence, :scores, :probabilities, :image_ref, :report_status)`, c)
	if err != nil {
		return fmt.Errorf("insert classification %s: %w", c.ID, err)
	}
	return nil
}

func (a *Archive) GetClassification(ctx context.Context, id string) (Classification, error) {
	var c Classification
	err := a.DB.GetContext(ctx, &c, `select * from classifications where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// ListClassifications returns the newest rows first. A non-empty sessionID
// restricts the listing to that session.
func (a *Archive) ListClassifications(ctx context.Context, sessionID string, limit int) ([]Classification, error) {
	out := make([]Classification, 0)
	var err error
	if sessionID == "" {
		err = a.DB.SelectContext(ctx, &out, `select * from classifications order by created_at desc limit $1`, limit)
	} else {
		err = a.DB.SelectContext(ctx, &out, `select * from classifications where session_id=$1 order by created_at desc limit $2`, sessionID, limit)
	}
	return out, err
}

func (a *Archive) SetImageRef(ctx context.Context, id, ref string) error {
	_, err := a.DB.ExecContext(ctx, `update classifications set image_ref=$1 where id=$2`, ref, id)
	return err
}

func (a *Archive) SetReportStatus(ctx context.Context, id, status string) error {
	_, err := a.DB.ExecContext(ctx, `update classifications set report_status=$1 where id=$2`, status, id)
	return err
}

// RecordReport stores the object ref of a rendered report and marks the
// classification ready in one transaction.
func (a *Archive) RecordReport(ctx context.Context, classificationID, ref string) (Report, error) {
	r := Report{ID: uuid.NewString(), ClassificationID: classificationID, ObjectRef: ref}
	err := WithTx(ctx, a.DB, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `insert into reports(id, classification_id, object_ref) values($1,$2,$3)`, r.ID, r.ClassificationID, r.ObjectRef); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `update classifications set report_status=$1 where id=$2`, ReportReady, classificationID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("record report for %s: %w", classificationID, err)
	}
	return r, nil
}

// LatestReport returns the most recent rendered report for a classification.
func (a *Archive) LatestReport(ctx context.Context, classificationID string) (Report, error) {
	var r Report
	err := a.DB.GetContext(ctx, &r, `select * from reports where classification_id=$1 order by created_at desc limit 1`, classificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}
