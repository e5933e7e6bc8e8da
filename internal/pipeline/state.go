package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/joseph-ayodele/statement-extractor/constants"
	"github.com/joseph-ayodele/statement-extractor/internal/common"
	"github.com/joseph-ayodele/statement-extractor/internal/metrics"
)

// State is a Controller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateClassifying
	StateExtractingText
	StateExtractingOCR
	StatePostProcessing
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateClassifying:    "classifying",
	StateExtractingText: "extracting_text",
	StateExtractingOCR:  "extracting_ocr",
	StatePostProcessing: "post_processing",
	StateCompleted:      "completed",
	StateFailed:         "failed",
	StateCancelled:      "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// runState lives for one Run. Backends only see this handle.
type runState struct {
	cancelled *atomic.Bool
	progress  *progressReporter
	backend   constants.Backend
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// checkpoint is called at every page boundary and around each recognition.
func (s *runState) checkpoint(ctx context.Context) error {
	if s.cancelled.Load() {
		return common.ErrCancelled
	}
	if ctx.Err() != nil {
		return contextError(ctx)
	}
	return nil
}

func (s *runState) report(percent int, status string) {
	s.progress.report(percent, status)
}

// contextError maps a finished context onto the pipeline taxonomy.
func contextError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, common.ErrTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		return common.ErrTimeout
	}
	return common.ErrCancelled
}
