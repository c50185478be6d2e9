package generic

import "sync"

// Pool is a typed sync.Pool.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

type PoolOption[T any] func(*Pool[T])

// WithReset runs fn on every value handed back through Put.
func WithReset[T any](fn func(T)) PoolOption[T] {
	return func(p *Pool[T]) {
		p.reset = fn
	}
}

func NewPool[T any](generate func() T, opts ...PoolOption[T]) *Pool[T] {
	p := &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}
