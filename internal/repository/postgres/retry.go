package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lib/pq"
)

const maxAttempts = 3

// backoff schedule for reconnect attempts: 0.5s, 1s, 2s.
func backoff(attempt int) time.Duration {
	return 500 * time.Millisecond << attempt
}

// isTransient reports whether an error is a connectivity failure worth
// retrying: a dropped driver connection, a network error, or a PostgreSQL
// connection-exception / operator-intervention class error.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		return class == "08" || class == "57"
	}
	return false
}

// withRetry runs fn up to maxAttempts times, backing off exponentially on
// transient connectivity errors. Persistent failures surface to the caller.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}
		wait := backoff(attempt)
		log.Warn("store: reconnecting", "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
	return err
}
