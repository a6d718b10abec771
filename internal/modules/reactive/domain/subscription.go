package domain

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Subscription is issued once per connection and handed to OnSubscribe.
//
// Demand is unbounded until the handler first calls Request. From then on every OnNext
// consumes one unit and the dispatcher holds frames until more is requested.
type Subscription struct {
	link *Link

	cancelled  atomic.Bool
	bounded    atomic.Bool
	demand     atomic.Int64
	wake       chan struct{}
	cancelOnce sync.Once
	onCancel   func()
}

// NewSubscription creates the token for link. onCancel runs once on the first Cancel.
func NewSubscription(link *Link, onCancel func()) *Subscription {
	return &Subscription{
		link:     link,
		wake:     make(chan struct{}, 1),
		onCancel: onCancel,
	}
}

// Link returns the connection's link.
func (s *Subscription) Link() *Link { return s.link }

// Request signals readiness for n more items.
func (s *Subscription) Request(n int64) error {
	if n <= 0 {
		return fmt.Errorf("%w: request(%d)", ErrInvalidRequest, n)
	}
	s.bounded.Store(true)
	for {
		cur := s.demand.Load()
		next := cur + n
		if next < cur {
			next = math.MaxInt64
		}
		if s.demand.CompareAndSwap(cur, next) {
			break
		}
	}
	s.signal()
	return nil
}

// Cancel stops delivery. Calling it more than once has no further effect.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.cancelled.Store(true)
		s.signal()
		if s.onCancel != nil {
			s.onCancel()
		}
	})
}

func (s *Subscription) Cancelled() bool { return s.cancelled.Load() }

// Pending reports the outstanding demand, or -1 while demand is unbounded.
func (s *Subscription) Pending() int64 {
	if !s.bounded.Load() {
		return -1
	}
	return s.demand.Load()
}

// Await takes one unit of demand, blocking until some is requested. It reports false when
// the subscription was cancelled meanwhile.
func (s *Subscription) Await(ctx context.Context) (bool, error) {
	for {
		if s.cancelled.Load() {
			return false, nil
		}
		if !s.bounded.Load() {
			return true, nil
		}
		if n := s.demand.Load(); n > 0 {
			if s.demand.CompareAndSwap(n, n-1) {
				return true, nil
			}
			continue
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
