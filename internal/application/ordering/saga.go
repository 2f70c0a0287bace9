package ordering

import (
	"context"

	"go.uber.org/zap"
)

// compensation is one named undo action recorded by the commit protocol
// after a side effect succeeds.
type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga collects compensations in execution order and unwinds them in
// reverse when the commit fails. A failed compensation is logged and the
// unwind continues; stopping early would strand even more state.
type saga struct {
	steps  []compensation
	logger *zap.Logger
}

func newSaga(logger *zap.Logger) *saga {
	return &saga{
		steps:  make([]compensation, 0, 8),
		logger: logger,
	}
}

// push records an undo action for a completed step
func (s *saga) push(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// unwind runs all recorded compensations newest-first
func (s *saga) unwind(ctx context.Context) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			s.logger.Error("compensation failed",
				zap.String("step", step.name),
				zap.Error(err))
		}
	}
	s.steps = s.steps[:0]
}
