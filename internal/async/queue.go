package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statement-extractor/internal/pipeline"
)

// Job is one document waiting for extraction.
type Job struct {
	ID          uuid.UUID // assigned by Submit
	Source      string
	Data        []byte
	Options     pipeline.Options
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Submit(ctx context.Context, job Job) (uuid.UUID, error)
	Cancel(jobID uuid.UUID) bool
	Shutdown(ctx context.Context)
}
