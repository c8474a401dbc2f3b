package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jmehdipour/utility-billing/internal/model"
)

var (
	ErrNoHealthy = errors.New("no healthy providers")
	ErrNoAcquire = errors.New("provider not acquired")
)

// Dispatcher spreads messages round-robin over the providers whose breaker
// is closed, retrying up to maxAttempts times.
type Dispatcher struct {
	providers         []Provider
	roundRobinCounter atomic.Uint64
	maxAttempts       int
}

func NewDispatcher(provs []Provider, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 2
	}

	return &Dispatcher{providers: provs, maxAttempts: maxAttempts}
}

func (d *Dispatcher) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := d.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (d *Dispatcher) tryOnce(ctx context.Context, msg model.Message) error {
	p, err := d.selectProvider()
	if err != nil {
		return err
	}

	if !p.Acquire() {
		return ErrNoAcquire
	}

	return p.Send(ctx, msg)
}

// Send delivers msg through the first provider that accepts it.
func (d *Dispatcher) Send(ctx context.Context, msg model.Message) error {
	var last error
	for i := 0; i < d.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.tryOnce(ctx, msg)
		if err == nil {
			return nil
		}
		last = err
	}

	if last == nil {
		last = fmt.Errorf("send to %s failed", msg.To)
	}

	return last
}
