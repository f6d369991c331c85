// Package apid is the thin HTTP/JSON API collaborator: just enough surface
// to exercise the mailstore's Query/Get/MarkRead/Delete contract over
// go-chi, matching the pagination shape spec.md §4.3/§6 requires. It
// deliberately does not implement user accounts, OAuth/TOTP, or a web UI —
// those are out of scope (spec.md Non-goals) — standing in with a single
// shared-secret bearer check instead.
package apid

import (
	"github.com/vaultbox/emts/internal/models"
)

// Store is the mailstore surface the API handlers depend on.
type Store interface {
	Query(filter models.Filter, page, pageSize int, sortBy models.SortField, sortOrder models.SortOrder) models.Page
	Get(id string, recipientFilter string) (models.Message, bool)
	MarkRead(id string, recipientFilter string, read bool) bool
	Delete(id string, recipientFilter string) bool
}
