package download

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries an operation a bounded number of times with a fixed
// delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Retryable reports whether a transfer error may succeed on a second try
// with the same link. Expired links and redirect violations are not.
func Retryable(err error) bool {
	if errors.Is(err, ErrLinkExpired) || errors.Is(err, ErrRedirectProtocolViolation) {
		return false
	}
	return errors.Is(err, ErrTransfer)
}

// Do runs op until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error) (int, error) {
	limit := p.MaxAttempts
	if limit < 1 {
		limit = 1
	}
	var err error
	for attempt := 1; attempt <= limit; attempt++ {
		if err = op(attempt); err == nil {
			return attempt, nil
		}
		if !Retryable(err) || attempt == limit {
			return attempt, err
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return attempt, err
		}
	}
	return limit, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
