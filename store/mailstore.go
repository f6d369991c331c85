// Package store implements the encrypted mailstore (MS): the durable,
// searchable message relation described in spec.md §4.3, plus the hand-off
// queue and pub/sub fan-out it is fed by (see the queue and pubsub
// subpackages).
package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	sqlite3migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vaultbox/emts/internal/cryptoprim"
	"github.com/vaultbox/emts/internal/idgen"
	"github.com/vaultbox/emts/internal/logging"
	"github.com/vaultbox/emts/internal/models"
	"github.com/vaultbox/emts/internal/telemetry"
	"github.com/vaultbox/emts/internal/tokenizer"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Mailstore is the encrypted, tokenized-search message store. Writes
// (insert, mark-read, delete, eviction) are serialized under mu in write
// mode; reads take the read lock, matching spec.md §5's single-writer
// policy.
type Mailstore struct {
	db     *sql.DB
	mu     sync.RWMutex
	cipher *cryptoprim.FieldCipher
	hasher *cryptoprim.TokenHasher

	maxSizeBytes int64
}

// Open opens (and migrates) the SQLite-backed mailstore at path, deriving
// both crypto primitive keys from fieldKey.
func Open(path string, fieldKey []byte, maxSizeBytes int64) (*Mailstore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("mailstore: open %s: %w", path, err)
	}
	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	cipher, err := cryptoprim.NewFieldCipher(fieldKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	tokenKey := cryptoprim.DeriveTokenKey(fieldKey)

	return &Mailstore{
		db:           db,
		cipher:       cipher,
		hasher:       cryptoprim.NewTokenHasher(tokenKey),
		maxSizeBytes: maxSizeBytes,
	}, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("mailstore: migration source: %w", err)
	}
	driver, err := sqlite3migrate.WithInstance(db, &sqlite3migrate.Config{})
	if err != nil {
		return fmt.Errorf("mailstore: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("mailstore: migration init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("mailstore: migration up: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (m *Mailstore) Close() error {
	return m.db.Close()
}

// Insert allocates a fresh id and atomically writes the encrypted row and
// its token index, then runs the size-bound eviction loop.
func (m *Mailstore) Insert(env models.QueueEnvelope) (string, error) {
	id := idgen.New()
	if err := m.InsertWithId(id, env); err != nil {
		return "", err
	}
	return id, nil
}

// InsertWithId writes the row under a caller-supplied id, used by the
// indexer worker once the ingestor has already allocated one (spec.md
// §4.3/§4.5).
func (m *Mailstore) InsertWithId(id string, env models.QueueEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	senderCt, err := m.cipher.Encrypt(env.Sender)
	if err != nil {
		return err
	}
	recipientCt, err := m.cipher.Encrypt(env.Recipient)
	if err != nil {
		return err
	}
	subjectCt, err := m.cipher.Encrypt(env.Subject)
	if err != nil {
		return err
	}
	bodyCt, err := m.cipher.Encrypt(env.Body)
	if err != nil {
		return err
	}
	tags := env.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO messages (id, sender, recipient, subject, body, is_read, arrival_time, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, senderCt, recipientCt, subjectCt, bodyCt, env.IsRead, env.ArrivalTime, string(tagsJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			telemetry.CaptureDuplicateInsert(id)
			return ErrDuplicateID
		}
		return err
	}

	if err := insertTokens(tx, m.hasher, id, env); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	m.evictLocked(id)
	return nil
}

func insertTokens(tx *sql.Tx, hasher *cryptoprim.TokenHasher, id string, env models.QueueEnvelope) error {
	stmt, err := tx.Prepare(`INSERT INTO tokens (message_id, token_hash, token_source) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	fields := []struct {
		source string
		text   string
	}{
		{"sender", env.Sender},
		{"recipient", env.Recipient},
		{"subject", env.Subject},
		{"body", env.Body},
	}
	for _, f := range fields {
		for token := range tokenizer.Tokenize(f.text) {
			if _, err := stmt.Exec(id, hasher.Hash(f.source, token), f.source); err != nil {
				return err
			}
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Get returns the fully decrypted message, or false if it doesn't exist, a
// recipientFilter is given and doesn't match, or the row fails to decrypt
// (CryptoError — logged and treated as absent rather than raised).
func (m *Mailstore) Get(id string, recipientFilter string) (models.Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id, recipientFilter)
}

func (m *Mailstore) getLocked(id string, recipientFilter string) (models.Message, bool) {
	row := m.db.QueryRow(`
		SELECT id, sender, recipient, subject, body, is_read, arrival_time, tags
		FROM messages WHERE id = ?`, id)

	var r rawRow
	if err := row.Scan(&r.id, &r.senderCt, &r.recipientCt, &r.subjectCt, &r.bodyCt, &r.isRead, &r.arrivalTime, &r.tags); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.ErrorLog("mailstore get id=%s: %v", id, err)
		}
		return models.Message{}, false
	}

	msg, ok := m.decryptMessage(r)
	if !ok {
		return models.Message{}, false
	}
	if recipientFilter != "" && !strings.EqualFold(msg.Recipient, recipientFilter) {
		return models.Message{}, false
	}
	return msg, true
}

// MarkRead sets is_read and reports whether a row actually changed.
func (m *Mailstore) MarkRead(id string, recipientFilter string, read bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if recipientFilter != "" {
		if _, ok := m.getLocked(id, recipientFilter); !ok {
			return false
		}
	}
	res, err := m.db.Exec(`UPDATE messages SET is_read = ? WHERE id = ? AND is_read != ?`, read, id, read)
	if err != nil {
		logging.ErrorLog("mailstore mark-read id=%s: %v", id, err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

// Delete removes a message and all its tokens atomically, reporting whether
// anything was removed.
func (m *Mailstore) Delete(id string, recipientFilter string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if recipientFilter != "" {
		if _, ok := m.getLocked(id, recipientFilter); !ok {
			return false
		}
	}
	return m.deleteLocked(id)
}

func (m *Mailstore) deleteLocked(id string) bool {
	tx, err := m.db.Begin()
	if err != nil {
		logging.ErrorLog("mailstore delete id=%s: %v", id, err)
		return false
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		logging.ErrorLog("mailstore delete id=%s: %v", id, err)
		return false
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false
	}
	if _, err := tx.Exec(`DELETE FROM tokens WHERE message_id = ?`, id); err != nil {
		logging.ErrorLog("mailstore delete tokens id=%s: %v", id, err)
		return false
	}
	if err := tx.Commit(); err != nil {
		logging.ErrorLog("mailstore delete commit id=%s: %v", id, err)
		return false
	}
	return true
}

// evictLocked runs the size-bound eviction loop (spec.md §4.3 "Eviction"),
// stopping once under the bound or only keepID (the message just inserted
// by this call) remains, per spec.md §8 (P6) — a single message larger than
// the size bound must survive on its own rather than being evicted.
// The stored schema has no size_bytes column (spec.md §6), so on-disk
// footprint is approximated by the sum of ciphertext field lengths, which
// dominate actual storage cost. Called with mu already held for writing.
func (m *Mailstore) evictLocked(keepID string) {
	for {
		var total sql.NullInt64
		if err := m.db.QueryRow(`
			SELECT SUM(LENGTH(sender) + LENGTH(recipient) + LENGTH(subject) + LENGTH(body))
			FROM messages`).Scan(&total); err != nil {
			logging.ErrorLog("mailstore eviction size check: %v", err)
			return
		}
		if !total.Valid || total.Int64 <= m.maxSizeBytes {
			return
		}

		var oldestID string
		err := m.db.QueryRow(`SELECT id FROM messages WHERE id != ? ORDER BY arrival_time ASC LIMIT 1`, keepID).Scan(&oldestID)
		if errors.Is(err, sql.ErrNoRows) {
			return
		}
		if err != nil {
			logging.ErrorLog("mailstore eviction oldest lookup: %v", err)
			return
		}
		if !m.deleteLocked(oldestID) {
			return
		}
		logging.InfoLog("mailstore evicted id=%s (size bound exceeded)", oldestID)
	}
}

func (m *Mailstore) decryptMessage(r rawRow) (models.Message, bool) {
	sender, ok := m.decryptField(r.senderCt, r.id, "sender")
	if !ok {
		return models.Message{}, false
	}
	recipient, ok := m.decryptField(r.recipientCt, r.id, "recipient")
	if !ok {
		return models.Message{}, false
	}
	subject, ok := m.decryptField(r.subjectCt, r.id, "subject")
	if !ok {
		return models.Message{}, false
	}
	body, ok := m.decryptField(r.bodyCt, r.id, "body")
	if !ok {
		return models.Message{}, false
	}
	var tags []string
	if err := json.Unmarshal([]byte(r.tags), &tags); err != nil {
		tags = []string{}
	}
	return models.Message{
		ID:          r.id,
		Sender:      sender,
		Recipient:   recipient,
		Subject:     subject,
		Body:        body,
		ArrivalTime: r.arrivalTime,
		IsRead:      r.isRead,
		Tags:        tags,
		SizeBytes:   len(body),
	}, true
}

func (m *Mailstore) decryptField(ct []byte, id, field string) (string, bool) {
	v, err := m.cipher.Decrypt(ct)
	if err != nil {
		wrapped := errors.Join(ErrCryptoAuth, err)
		logging.ErrorLog("mailstore crypto auth failed id=%s field=%s: %v", id, field, wrapped)
		telemetry.CaptureCryptoAuthFailure(id, field, wrapped)
		return "", false
	}
	return v, true
}

type rawRow struct {
	id                                        string
	senderCt, recipientCt, subjectCt, bodyCt  []byte
	isRead                                    bool
	arrivalTime                               string
	tags                                      string
}
