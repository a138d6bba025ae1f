// Package channels carries utterances in and replies out of the assistant.
package channels

import (
	"context"
	"errors"
	"sync"
)

// Input yields one utterance per call. io.EOF means the user is gone.
type Input interface {
	Read(ctx context.Context) (string, error)
}

// Output delivers one message to the user.
type Output interface {
	Write(ctx context.Context, text string) error
}

// OutputFunc adapts a function to Output.
type OutputFunc func(ctx context.Context, text string) error

func (f OutputFunc) Write(ctx context.Context, text string) error { return f(ctx, text) }

// Multi writes every message to all outputs, one message at a time.
type Multi struct {
	mu   sync.Mutex
	outs []Output
}

func NewMulti(outs ...Output) *Multi {
	m := &Multi{}
	for _, o := range outs {
		if o != nil {
			m.outs = append(m.outs, o)
		}
	}
	return m
}

func (m *Multi) Write(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, o := range m.outs {
		if err := o.Write(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
