package protocol

import (
	"context"
	"sync"
)

// Link is one ordered, message-framed connection. Implementations must
// allow Send and Receive from different goroutines and must make Close
// unblock a pending Receive.
type Link interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
	RemoteAddr() string
	Close() error
}

var _ Link = (*pipeEnd)(nil)

type pipeState struct {
	once sync.Once
	done chan struct{}
}

func (s *pipeState) close() {
	s.once.Do(func() { close(s.done) })
}

type pipeEnd struct {
	in    <-chan []byte
	out   chan<- []byte
	state *pipeState
	addr  string
}

// NewPipe returns two connected in-memory links. Closing either end closes
// both. Frames already buffered are still delivered after a close.
func NewPipe(buffer int) (Link, Link) {
	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)
	state := &pipeState{done: make(chan struct{})}
	a := &pipeEnd{in: ba, out: ab, state: state, addr: "pipe:b"}
	b := &pipeEnd{in: ab, out: ba, state: state, addr: "pipe:a"}
	return a, b
}

func (p *pipeEnd) Send(ctx context.Context, frame []byte) error {
	select {
	case <-p.state.done:
		return ErrConnectionClosed
	default:
	}
	buf := append([]byte(nil), frame...)
	select {
	case p.out <- buf:
		return nil
	case <-p.state.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	default:
	}
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.state.done:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) RemoteAddr() string {
	return p.addr
}

func (p *pipeEnd) Close() error {
	p.state.close()
	return nil
}
