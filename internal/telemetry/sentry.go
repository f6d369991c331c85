// Package telemetry wires getsentry/sentry-go so authentication-tamper and
// replay events (CryptoError, DuplicateId) are visible operationally
// without being treated as fatal, grounded on the sentry initialization
// pattern elsewhere in the pack.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/vaultbox/emts/internal/logging"
)

// Init configures the global Sentry client. dsn may be empty, in which case
// Sentry is a no-op and CaptureCryptoAuthFailure/CaptureDuplicateInsert
// silently do nothing.
func Init(dsn, environment string) error {
	if dsn == "" {
		logging.InfoLog("telemetry: no SENTRY_DSN configured, error tracking disabled")
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     "emts",
	})
}

// Flush blocks until buffered events are sent or the timeout elapses; call
// before process exit.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureCryptoAuthFailure reports a CryptoError (spec.md §7): AEAD
// authentication failed while decrypting a stored field.
func CaptureCryptoAuthFailure(messageID, field string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_kind", "crypto_auth_failure")
		scope.SetTag("message_id", messageID)
		scope.SetTag("field", field)
		sentry.CaptureException(err)
	})
}

// CaptureDuplicateInsert reports a DuplicateId event (spec.md §7): the
// indexer worker saw a retransmitted envelope for an id already stored.
func CaptureDuplicateInsert(messageID string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_kind", "duplicate_insert")
		scope.SetTag("message_id", messageID)
		sentry.CaptureMessage("duplicate envelope id rejected by mailstore")
	})
}
