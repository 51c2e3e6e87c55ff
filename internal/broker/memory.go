package broker

import (
	"context"

	"github.com/artemp/render-stack/internal/domain"
)

// MemoryBroker is an in-process Broker used by tests: jobs pushed via
// Push are handed out in FIFO order, and acks are recorded for assertion.
type MemoryBroker struct {
	jobs chan *domain.Job
	Acks []AckRecord
}

type AckRecord struct {
	Job *domain.Job
	Err error
}

func NewMemoryBroker(buffer int) *MemoryBroker {
	return &MemoryBroker{jobs: make(chan *domain.Job, buffer)}
}

func (b *MemoryBroker) Push(job *domain.Job) {
	b.jobs <- job
}

func (b *MemoryBroker) Close() {
	close(b.jobs)
}

func (b *MemoryBroker) Fetch(ctx context.Context) (*domain.Job, error) {
	select {
	case job, ok := <-b.jobs:
		if !ok {
			return nil, nil
		}
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MemoryBroker) Ack(ctx context.Context, job *domain.Job, err error) error {
	b.Acks = append(b.Acks, AckRecord{Job: job, Err: err})
	return nil
}
