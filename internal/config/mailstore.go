package config

import (
	"encoding/base64"
	"errors"
)

// ErrConfig marks a fatal configuration problem detected at startup
// (spec.md §7, ConfigError).
var ErrConfig = errors.New("config: invalid configuration")

// FieldKey returns the base64-decoded 32-byte field encryption key. Missing
// or malformed FIELD_KEY is a hard startup error per spec.md §6.
func FieldKey() ([]byte, error) {
	encoded := MustGetEnv("FIELD_KEY")
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Join(ErrConfig, err)
	}
	if len(key) != 32 {
		return nil, errors.Join(ErrConfig, errors.New("FIELD_KEY must decode to 32 bytes"))
	}
	return key, nil
}

// MaxSizeMB returns the mailstore's size bound in megabytes.
func MaxSizeMB() int {
	return parseIntEnv("MAX_SIZE_MB", 1024)
}

// MaxSizeBytes is MaxSizeMB converted to bytes.
func MaxSizeBytes() int64 {
	return int64(MaxSizeMB()) * 1 << 20
}

// MailstorePath returns the SQLite file backing the messages/tokens tables.
func MailstorePath() string {
	return GetEnv("MAILSTORE_PATH", "data/mailstore.db")
}

// QueueName returns the logical name of the hand-off queue (stored in the
// queue_name column so multiple queues can share a database file).
func QueueName() string {
	return GetEnv("QUEUE_NAME", "smtp_emails")
}

// NotifyPrefix returns the channel-name prefix for arrival notifications.
func NotifyPrefix() string {
	return GetEnv("NOTIFY_PREFIX", "email_notify:")
}

// QueueEndpoint names the queue's backing database file. The hand-off queue
// is an embedded SQLite table, not a networked broker, so this is a path,
// not a connection string.
func QueueEndpoint() string {
	return GetEnv("QUEUE_ENDPOINT", "data/queue.db")
}
