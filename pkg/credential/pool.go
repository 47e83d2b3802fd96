package credential

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many hash computations run at once.
type Pool struct {
	hasher PasswordHasher
	sem    *semaphore.Weighted
}

// NewPool wraps hasher. workers <= 0 means one slot per CPU.
func NewPool(hasher PasswordHasher, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

// Hash waits for a free slot, honouring ctx, then hashes password.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)
	return p.hasher.Hash(password)
}

// Verify waits for a free slot, honouring ctx, then compares password with hashedPassword.
func (p *Pool) Verify(ctx context.Context, password, hashedPassword string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)
	return p.hasher.Verify(password, hashedPassword)
}
