package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy describes what is retried and how often
type Policy struct {
	Attempts int           // 총 시도 횟수 (최소 1)
	Wait     time.Duration // 첫 재시도 전 대기
	Backoff  float64       // 대기 배수
	MaxWait  time.Duration // 0이면 제한 없음
}

// DefaultPolicy returns 3 attempts, 500ms initial wait, doubling
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Wait:     500 * time.Millisecond,
		Backoff:  2.0,
		MaxWait:  10 * time.Second,
	}
}

// permanentError stops retrying immediately
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks an error as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a permanent error, the attempts run out,
// or ctx is done. Waits grow by Backoff between attempts.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for functions that return a value
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Wait

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry canceled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}

		// Exponential backoff
		if p.Backoff > 1 {
			delay = time.Duration(float64(delay) * p.Backoff)
		}
		if p.MaxWait > 0 && delay > p.MaxWait {
			delay = p.MaxWait
		}
	}

	return zero, fmt.Errorf("%w (%d attempts): %w", ErrExhausted, attempts, lastErr)
}
