package sample

import (
	"context"

	"github.com/roach88/prevalence/internal/repository"
)

// IncCounter adds Inc.By (default 1) to the counter.
const IncCounter = "inc-counter"

// Counter is a single integer model.
type Counter struct {
	Value int `json:"value"`
}

// Inc is the argument of inc-counter.
type Inc struct {
	By int `json:"by,omitempty" yaml:"by,omitempty"`
}

// RegisterCounter installs inc-counter on r.
func RegisterCounter(r *repository.Repository[*Counter]) *repository.Repository[*Counter] {
	return r.Register(IncCounter, repository.Typed(func(_ context.Context, c *Counter, in Inc, _ repository.Invocation[*Counter]) (any, error) {
		if in.By == 0 {
			in.By = 1
		}
		c.Value += in.By
		return c.Value, nil
	}))
}

// CounterValue reads the counter.
func CounterValue(_ context.Context, c *Counter) (int, error) {
	return c.Value, nil
}
