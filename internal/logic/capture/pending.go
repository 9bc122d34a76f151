package capture

import "context"

// Pending is a capture in flight. It resolves exactly once.
type Pending struct {
	done chan struct{}
	res  *Result
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(res *Result, err error) {
	p.res, p.err = res, err
	close(p.done)
}

// Wait blocks until the capture completes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
