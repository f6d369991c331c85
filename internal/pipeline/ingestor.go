package pipeline

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vaultbox/emts/internal/idgen"
	"github.com/vaultbox/emts/internal/logging"
	"github.com/vaultbox/emts/internal/models"
)

// ErrIngest wraps a QueueError surfaced from the hand-off queue (spec.md
// §7): the ingestor propagates it so the SMTP collaborator can report a
// transient failure and let the sending MTA retry.
var ErrIngest = errors.New("pipeline: ingest failed")

// Enqueuer is the durable side of the hand-off queue.
type Enqueuer interface {
	Enqueue(blob []byte) error
}

// Publisher is the best-effort notification side of the hand-off queue.
type Publisher interface {
	Publish(channel string, blob []byte)
}

// Ingestor is the synchronous half of the arrival pipeline (spec.md §4.5),
// invoked directly by the SMTP collaborator for every accepted message.
type Ingestor struct {
	queue        Enqueuer
	notifier     Publisher
	notifyPrefix string
}

// NewIngestor builds an Ingestor over the given queue and notifier.
func NewIngestor(queue Enqueuer, notifier Publisher, notifyPrefix string) *Ingestor {
	return &Ingestor{queue: queue, notifier: notifier, notifyPrefix: notifyPrefix}
}

// Ingest reduces a parsed MIME message to an envelope, enqueues it durably,
// and publishes a best-effort arrival notification.
func (in *Ingestor) Ingest(msg *ParsedMessage) (string, error) {
	id := idgen.New()
	body := msg.Body()
	arrivalTime := nowUTCISO()

	env := models.QueueEnvelope{
		ID:          id,
		Sender:      msg.Sender,
		Recipient:   msg.Recipient,
		Subject:     msg.Subject,
		Body:        body,
		ArrivalTime: arrivalTime,
		IsRead:      false,
		Tags:        []string{},
		SizeBytes:   len(body),
	}

	blob, err := json.Marshal(env)
	if err != nil {
		return "", errors.Join(ErrIngest, err)
	}

	if err := in.queue.Enqueue(blob); err != nil {
		return "", errors.Join(ErrIngest, err)
	}

	notice := models.NotificationEnvelope{
		ID:          id,
		Sender:      msg.Sender,
		Recipient:   msg.Recipient,
		Subject:     msg.Subject,
		Status:      "received",
		ArrivalTime: arrivalTime,
	}
	noticeBlob, err := json.Marshal(notice)
	if err != nil {
		logging.WarnLog("ingestor: failed to marshal notification id=%s: %v", id, err)
		return id, nil
	}
	in.notifier.Publish(in.notifyPrefix+msg.Recipient, noticeBlob)

	return id, nil
}

func nowUTCISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
