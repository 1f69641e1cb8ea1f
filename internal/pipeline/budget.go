package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Budget bounds concurrent work against one resource class. Stages that
// call the LLM, stages that call enrichment registries and stages that
// only touch the store each hold their own budget, so slow LLM calls never
// starve store-bound work.
type Budget struct {
	name string
	sem  *semaphore.Weighted
}

// NewBudget creates a budget admitting up to size concurrent holders.
func NewBudget(name string, size int) *Budget {
	if size <= 0 {
		size = 1
	}
	return &Budget{
		name: name,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Acquire blocks until a slot frees up or the context ends.
func (b *Budget) Acquire(ctx context.Context) error {
	return b.sem.Acquire(ctx, 1)
}

// Release returns the slot.
func (b *Budget) Release() {
	b.sem.Release(1)
}

// Name identifies the budget in logs.
func (b *Budget) Name() string { return b.name }
