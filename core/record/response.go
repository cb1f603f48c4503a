package record

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Response is handed to a beforeSave hook. Exactly one of Success or Error
// takes effect; later calls are ignored.
type Response interface {
	Success()
	Error(message string)
}

// Outcome is the settled state of a Completion.
type Outcome struct {
	OK      bool
	Message string
}

// Completion is the Response implementation used by the mutation pipeline.
// It may be completed from any goroutine.
type Completion struct {
	once   sync.Once
	done   chan Outcome
	logger zerolog.Logger
}

// NewCompletion creates an unsettled completion.
func NewCompletion(logger zerolog.Logger) *Completion {
	return &Completion{done: make(chan Outcome, 1), logger: logger}
}

// Success settles the completion successfully.
func (c *Completion) Success() {
	c.settle(Outcome{OK: true})
}

// Error settles the completion with a rejection message.
func (c *Completion) Error(message string) {
	c.settle(Outcome{Message: message})
}

func (c *Completion) settle(o Outcome) {
	fired := false
	c.once.Do(func() {
		fired = true
		c.done <- o
	})
	if !fired {
		c.logger.Warn().Bool("ok", o.OK).Str("message", o.Message).Msg("beforeSave response already completed, ignoring")
	}
}

// Wait blocks until the completion settles or ctx is done.
func (c *Completion) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o := <-c.done:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
