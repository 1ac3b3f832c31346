package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/coupler/pkg/domain"
)

// RetryPolicy bounds how long the controller polls an unreachable control channel.
type RetryPolicy struct {
	// Interval between two polls.
	Interval time.Duration `yaml:"interval" json:"interval" mapstructure:"interval"`

	// MaxAttempts is the number of failed connections tolerated per call.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" mapstructure:"max_attempts"`
}

// DefaultRetryPolicy polls every 100ms and gives up after 1000 failed connections.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: 100 * time.Millisecond, MaxAttempts: 1000}
}

// Validate fails with a *domain.ConfigError.
func (p RetryPolicy) Validate() error {
	if p.Interval <= 0 {
		return &domain.ConfigError{Key: "retry.interval", Reason: "must be positive", Value: p.Interval}
	}
	if p.MaxAttempts <= 0 {
		return &domain.ConfigError{Key: "retry.max_attempts", Reason: "must be positive", Value: p.MaxAttempts}
	}
	return nil
}

// pollFunc is one poll. It returns true when polling is over.
type pollFunc func(ctx context.Context) (bool, error)

// poll calls fn until it reports done, returns a non-transport error, or the
// retry budget is spent. Only errors wrapping domain.ErrUnreachable are
// retried; polls that answer but are not done are free. exited is watched
// so a dead process is reported instead of an exhausted budget.
func (p RetryPolicy) poll(ctx context.Context, url string, exited <-chan struct{}, exitErr func() error, fn pollFunc) (int, error) {
	start := time.Now()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	attempts, failures := 0, 0
	for {
		attempts++
		done, err := fn(ctx)
		switch {
		case err == nil && done:
			return attempts, nil
		case err != nil && !errors.Is(err, domain.ErrUnreachable):
			return attempts, err
		case err != nil:
			failures++
			if failures >= p.MaxAttempts {
				return attempts, &domain.ConnectionExhaustedError{
					URL:      url,
					Attempts: failures,
					Elapsed:  time.Since(start),
					Last:     err,
				}
			}
		}

		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-exited:
			return attempts, processExited(exitErr())
		case <-ticker.C:
		}
	}
}

func processExited(err error) error {
	if err == nil {
		return domain.ErrProcessExited
	}
	return fmt.Errorf("%w: %v", domain.ErrProcessExited, err)
}

func splitCommand(s string) []string { return strings.Fields(s) }
