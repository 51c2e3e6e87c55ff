// Package broker defines the job/ack contract the worker loop dials
// against. The wire protocol between brokers and workers is out of scope
// (spec Non-goal); this package gives the worker something concrete to
// pull jobs from and ack results to, the same way the original worker.py
// talks to an external dqueue broker.
package broker

import (
	"context"

	"github.com/artemp/render-stack/internal/domain"
)

// Broker hands out render jobs and accepts their completion status.
type Broker interface {
	// Fetch waits for a job. It may return a nil job with a nil error (a
	// poll timeout or a closed queue); the worker loop skips those and
	// fetches again.
	Fetch(ctx context.Context) (*domain.Job, error)
	// Ack reports a job's outcome back to the broker. The worker loop
	// retries a failed Ack up to worker.AckRetries times, then logs the
	// failure and moves on to the next job.
	Ack(ctx context.Context, job *domain.Job, err error) error
}
