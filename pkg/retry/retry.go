// Package retry runs remote calls with a bounded number of attempts and a fixed wait between them.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often and how patiently a call is repeated
type Policy struct {
	Attempts int           // total attempts, including the first one
	Wait     time.Duration // fixed delay between attempts
}

// DefaultPolicy mirrors the supplier integration defaults: 3 attempts, 2s apart
var DefaultPolicy = Policy{Attempts: 3, Wait: 2 * time.Second}

// Permanent marks err as not retryable; Do returns it unwrapped
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts are used up, or ctx ends
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Wait)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)
	return backoff.Retry(fn, b)
}
