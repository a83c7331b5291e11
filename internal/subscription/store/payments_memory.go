package store

import (
	"context"
	"sync"
	"time"

	id "dealerhub/pkg/domain"
)

type paymentState int

const (
	paymentInFlight paymentState = iota
	paymentDone
)

type paymentClaim struct {
	state   paymentState
	claimed time.Time
}

// InMemoryPayments tracks processed payment references for one process.
// An in-flight claim older than the lease is treated as abandoned.
type InMemoryPayments struct {
	mu     sync.Mutex
	claims map[id.PaymentReference]paymentClaim
	lease  time.Duration
	now    func() time.Time
}

func NewInMemoryPayments() *InMemoryPayments {
	return &InMemoryPayments{
		claims: make(map[id.PaymentReference]paymentClaim),
		lease:  DefaultPaymentLease,
		now:    time.Now,
	}
}

func (s *InMemoryPayments) Begin(_ context.Context, ref id.PaymentReference) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if c, ok := s.claims[ref]; ok {
		if c.state == paymentDone || now.Sub(c.claimed) < s.lease {
			return false, nil
		}
	}
	s.claims[ref] = paymentClaim{state: paymentInFlight, claimed: now}
	return true, nil
}

func (s *InMemoryPayments) Complete(_ context.Context, ref id.PaymentReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[ref] = paymentClaim{state: paymentDone, claimed: s.now()}
	return nil
}

func (s *InMemoryPayments) Release(_ context.Context, ref id.PaymentReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[ref]; ok && c.state == paymentInFlight {
		delete(s.claims, ref)
	}
	return nil
}
