package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/jmagar/gigs-cli/internal/logger"
)

// Event names written to the request log. Each line is one JSON object so
// the file can be consumed with jq.
const (
	eventRequest         = "request"
	eventRetry           = "retry"
	eventRateLimitWait   = "rate_limit_wait"
	eventCircuitOpened   = "circuit_opened"
	eventCircuitClosed   = "circuit_closed"
	eventCircuitHalfOpen = "circuit_half_open"
	eventCircuitRejected = "circuit_rejected"
)

// OpenRequestLog opens (or creates) the dedicated request log at path and
// returns a JSON logger writing to it plus a close func. The directory is
// created with mode 0700.
func OpenRequestLog(path string) (*logrus.Entry, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("request log: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("request log: open %s: %w", path, err)
	}
	return NewRequestLog(f), f.Close, nil
}

// NewRequestLog returns a JSON request logger writing to w.
func NewRequestLog(w io.Writer) *logrus.Entry {
	return logger.NewWithOutput("api", "debug", "json", w)
}

// requestLog records gateway events. A nil *requestLog is a no-op.
type requestLog struct {
	log *logrus.Entry
}

func (l *requestLog) request(label, requestID string, statusCode int, d time.Duration, attempt int, circ gobreaker.State, reqErr error) {
	if l == nil {
		return
	}
	event := eventRequest
	if attempt > 0 {
		event = eventRetry
	}
	e := l.log.WithFields(logrus.Fields{
		"event":         event,
		"label":         label,
		"request_id":    requestID,
		"status_code":   statusCode,
		"duration_ms":   d.Milliseconds(),
		"attempt":       attempt,
		"circuit_state": circ.String(),
	})
	if reqErr != nil {
		e.WithError(reqErr).Warn(event)
		return
	}
	e.Info(event)
}

func (l *requestLog) rateLimitWait(label string, waited time.Duration) {
	if l == nil {
		return
	}
	l.log.WithFields(logrus.Fields{
		"event":           eventRateLimitWait,
		"label":           label,
		"rate_limited_ms": waited.Milliseconds(),
	}).Info(eventRateLimitWait)
}

func (l *requestLog) circuitChange(breaker string, from, to gobreaker.State) {
	if l == nil {
		return
	}
	event := eventCircuitHalfOpen
	switch to {
	case gobreaker.StateOpen:
		event = eventCircuitOpened
	case gobreaker.StateClosed:
		event = eventCircuitClosed
	}
	l.log.WithFields(logrus.Fields{
		"event":         event,
		"breaker":       breaker,
		"circuit_state": to.String(),
		"transition":    from.String() + " -> " + to.String(),
	}).Warn(event)
}

func (l *requestLog) circuitRejected(label string) {
	if l == nil {
		return
	}
	l.log.WithFields(logrus.Fields{
		"event":         eventCircuitRejected,
		"label":         label,
		"circuit_state": gobreaker.StateOpen.String(),
	}).Warn(ErrCircuitOpen.Error())
}
