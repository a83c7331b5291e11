package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "dealerhub/pkg/domain"
)

const (
	// DefaultPaymentLease bounds how long an in-flight claim blocks redelivery.
	DefaultPaymentLease = 2 * time.Minute
	// processedRetention is how long a completed reference is remembered.
	// The credit ledger remains the durable duplicate check after that.
	processedRetention = 30 * 24 * time.Hour

	paymentKeyPrefix = "dealerhub:payment:"
	valueInFlight    = "in_flight"
	valueDone        = "done"
)

// releaseScript deletes a claim only while it is still in flight.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisPayments shares processed payment references across replicas with
// SET NX claims.
type RedisPayments struct {
	client redis.UniversalClient
	lease  time.Duration
}

func NewRedisPayments(client redis.UniversalClient) *RedisPayments {
	return &RedisPayments{client: client, lease: DefaultPaymentLease}
}

func paymentKey(ref id.PaymentReference) string {
	return paymentKeyPrefix + ref.String()
}

func (s *RedisPayments) Begin(ctx context.Context, ref id.PaymentReference) (bool, error) {
	ok, err := s.client.SetNX(ctx, paymentKey(ref), valueInFlight, s.lease).Result()
	if err != nil {
		return false, fmt.Errorf("claim payment reference: %w", err)
	}
	return ok, nil
}

func (s *RedisPayments) Complete(ctx context.Context, ref id.PaymentReference) error {
	if err := s.client.Set(ctx, paymentKey(ref), valueDone, processedRetention).Err(); err != nil {
		return fmt.Errorf("complete payment reference: %w", err)
	}
	return nil
}

func (s *RedisPayments) Release(ctx context.Context, ref id.PaymentReference) error {
	if err := releaseScript.Run(ctx, s.client, []string{paymentKey(ref)}, valueInFlight).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release payment reference: %w", err)
	}
	return nil
}
