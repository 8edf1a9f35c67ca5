// Package tasks defines the background jobs shared by the console and worker.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const TypeRenderReport = "report:render"

type RenderReportPayload struct {
	ClassificationID string `json:"classification_id"`
}

func NewRenderReportTask(classificationID string, opts ...asynq.Option) (*asynq.Task, error) {
	if classificationID == "" {
		return nil, errors.New("render report: empty classification id")
	}
	b, err := json.Marshal(RenderReportPayload{ClassificationID: classificationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRenderReport, b, opts...), nil
}

func ParseRenderReport(t *asynq.Task) (RenderReportPayload, error) {
	var p RenderReportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("render report payload: %w", err)
	}
	if p.ClassificationID == "" {
		return p, errors.New("render report payload: missing classification_id")
	}
	return p, nil
}

// Enqueuer submits tasks to Redis through asynq.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func NewEnqueuer(client *asynq.Client, maxRetry int) *Enqueuer {
	return &Enqueuer{client: client, maxRetry: maxRetry}
}

func (e *Enqueuer) EnqueueReport(ctx context.Context, classificationID string) error {
	task, err := NewRenderReportTask(classificationID, asynq.MaxRetry(e.maxRetry))
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeRenderReport, err)
	}
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
