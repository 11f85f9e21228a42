package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/kxapi/internal/kerbalx"
	"github.com/five82/kxapi/internal/logging"
)

const (
	defaultRetryInterval = 2 * time.Second
	maxBackoff           = 30 * time.Second
)

// retrier is the part of *kerbalx.Transport the background retry loop uses.
type retrier interface {
	CanRetry() bool
	Retry(ctx context.Context) (*kerbalx.Call, error)
	Probe(ctx context.Context, rawURL string, fn func(contentType string)) *kerbalx.Call
}

var _ retrier = (*kerbalx.Transport)(nil)

// StartRetrier launches a background goroutine that watches for a request
// held after a connection failure. Once probeURL answers, the held request
// is resent once. Unreachable probes back off exponentially up to
// maxBackoff. It returns immediately.
func StartRetrier(ctx context.Context, t retrier, probeURL string, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	log := logging.OrDiscard(logger).WithField("component", "retrier")
	go func() {
		failures := 0
		for {
			wait := interval
			if t.CanRetry() {
				if reachable(ctx, t, probeURL) {
					failures = 0
					if call, err := t.Retry(ctx); err == nil {
						if _, err := call.Wait(ctx); err != nil {
							log.WithError(err).Warn("retry failed")
						}
					}
				} else {
					failures++
					wait = calculateBackoff(failures, interval)
					log.WithFields(logrus.Fields{"failures": failures, "next": wait}).Debug("KerbalX still unreachable")
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
}

func reachable(ctx context.Context, t retrier, probeURL string) bool {
	_, err := t.Probe(ctx, probeURL, nil).Wait(ctx)
	return err == nil
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	if failures >= 16 {
		return maxBackoff
	}
	d := base << failures
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
