// Package smtpserver is the SMTP collaborator: it accepts mail for any
// recipient, reduces the MIME payload to a ParsedMessage, and hands it to
// the arrival pipeline's Ingestor (spec.md §4.5, §6). It never opens the
// mailstore directly — only the indexer worker and the API collaborator do
// that, keeping the encrypted write path single-writer (spec.md §5).
package smtpserver

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strings"
	"time"

	smtpcore "github.com/emersion/go-smtp"
	"golang.org/x/time/rate"

	"github.com/vaultbox/emts/internal/logging"
	"github.com/vaultbox/emts/internal/manager"
	"github.com/vaultbox/emts/internal/pipeline"
	"github.com/vaultbox/emts/internal/utils"
)

// ingestSession implements the SMTP session for a single connection.
type ingestSession struct {
	remoteAddr      string
	from            string
	recipients      []string
	ingestor        *pipeline.Ingestor
	mgr             *manager.WorkManager
	limiter         *senderRateLimiter
	maxRecipients   int
	maxMessageBytes int64
}

func (s *ingestSession) Reset() {
	s.from = ""
	s.recipients = s.recipients[:0]
}

func (s *ingestSession) Logout() error { return nil }

func (s *ingestSession) Mail(from string, _ *smtpcore.MailOptions) error {
	if s.limiter != nil && !s.limiter.allow(strings.ToLower(strings.TrimSpace(from))) {
		logging.WarnLog("smtp: rate limit exceeded sender=%s", utils.HashEmail(from))
		return &smtpcore.SMTPError{Code: 450, EnhancedCode: smtpcore.EnhancedCode{4, 7, 0}, Message: "rate limit exceeded, try again later"}
	}
	s.from = from
	return nil
}

func (s *ingestSession) Rcpt(to string, _ *smtpcore.RcptOptions) error {
	if len(s.recipients) >= s.maxRecipients {
		return &smtpcore.SMTPError{Code: 452, EnhancedCode: smtpcore.EnhancedCode{4, 5, 3}, Message: "too many recipients"}
	}
	s.recipients = append(s.recipients, to)
	return nil
}

func (s *ingestSession) Data(r io.Reader) error {
	limited := io.LimitReader(r, s.maxMessageBytes)
	parsed, err := parseMessage(limited, s.from, s.recipients)
	if err != nil {
		logging.WarnLog("smtp: parse failed from=%s: %v", s.remoteAddr, err)
		return &smtpcore.SMTPError{Code: 451, EnhancedCode: smtpcore.EnhancedCode{4, 3, 0}, Message: "error parsing message"}
	}

	for _, msg := range parsed {
		msg := msg
		if err := s.mgr.SubmitSMTPIngest(func(ctx context.Context) {
			if !manager.RunWithTimeout(ctx, 10*time.Second, func(context.Context) {
				if _, err := s.ingestor.Ingest(msg); err != nil {
					logging.ErrorLog("smtp: ingest failed sender=%s recipient=%s: %v",
						utils.HashEmail(msg.Sender), utils.HashEmail(msg.Recipient), err)
				}
			}) {
				logging.WarnLog("smtp: ingest timed out recipient=%s", utils.HashEmail(msg.Recipient))
			}
		}); err != nil {
			logging.ErrorLog("smtp: ingest pool submit failed: %v", err)
		}
	}

	s.Reset()
	return nil
}

// parseMessage builds one ParsedMessage per accepted recipient (SMTP
// envelope recipients can diverge from the To: header, but the mailstore
// indexes per-envelope-recipient so each gets its own row).
func parseMessage(r io.Reader, from string, recipients []string) ([]*pipeline.ParsedMessage, error) {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("smtp: read message: %w", err)
	}

	subject := decodeHeaderWord(m.Header.Get("Subject"))
	contentType := m.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	var single *pipeline.Part
	var multi []pipeline.Part
	if strings.HasPrefix(mediaType, "multipart/") {
		multi = walkMultipart(m.Body, params["boundary"])
	} else {
		body, err := io.ReadAll(m.Body)
		if err != nil {
			return nil, fmt.Errorf("smtp: read body: %w", err)
		}
		single = &pipeline.Part{ContentType: mediaType, Charset: params["charset"], Payload: body}
	}

	sender := strings.TrimSpace(from)
	out := make([]*pipeline.ParsedMessage, 0, len(recipients))
	for _, rcpt := range recipients {
		out = append(out, &pipeline.ParsedMessage{
			Sender:    sender,
			Recipient: strings.TrimSpace(rcpt),
			Subject:   subject,
			Single:    single,
			Multi:     multi,
		})
	}
	return out, nil
}

// walkMultipart reads each leaf part of a multipart body, grounded on the
// extractBodies pattern in other_examples' mailcapture SMTP backend.
// A part whose body cannot be read is skipped, a part with an unparseable
// Content-Type is kept as text/plain, and an error advancing to the next
// part ends the walk with the parts read so far; none of these fail the
// whole message.
func walkMultipart(body io.Reader, boundary string) []pipeline.Part {
	if boundary == "" {
		return nil
	}
	mr := multipart.NewReader(body, boundary)
	var parts []pipeline.Part
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		partContentType := part.Header.Get("Content-Type")
		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			mediaType, params = "text/plain", map[string]string{}
		}
		payload, err := io.ReadAll(part)
		if err != nil {
			continue
		}
		parts = append(parts, pipeline.Part{ContentType: mediaType, Charset: params["charset"], Payload: payload})
	}
	return parts
}

func decodeHeaderWord(raw string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Backend implements the SMTP Backend for go-smtp.
type Backend struct {
	ingestor        *pipeline.Ingestor
	mgr             *manager.WorkManager
	limiter         *senderRateLimiter
	maxRecipients   int
	maxMessageBytes int64
}

// NewBackend constructs a Backend that hands every accepted message to
// ingestor. Every session shares one per-sender rate limiter so a single
// misbehaving sender can't be worked around by opening new connections.
func NewBackend(ingestor *pipeline.Ingestor, mgr *manager.WorkManager, maxRecipients int, maxMessageBytes int64) *Backend {
	return &Backend{
		ingestor:        ingestor,
		mgr:             mgr,
		limiter:         newSenderRateLimiter(rate.Limit(5), 20),
		maxRecipients:   maxRecipients,
		maxMessageBytes: maxMessageBytes,
	}
}

func (b *Backend) NewSession(c *smtpcore.Conn) (smtpcore.Session, error) {
	ra := "unknown"
	if c.Conn() != nil {
		ra = c.Conn().RemoteAddr().String()
	}
	return &ingestSession{
		remoteAddr:      ra,
		ingestor:        b.ingestor,
		mgr:             b.mgr,
		limiter:         b.limiter,
		maxRecipients:   b.maxRecipients,
		maxMessageBytes: b.maxMessageBytes,
	}, nil
}

// Server wraps go-smtp server with configuration.
type Server struct {
	*smtpcore.Server
	ln net.Listener
}

// NewServer constructs and configures the mail-ingest SMTP server.
func NewServer(b *Backend, addr, domain string, maxMessageBytes int64, maxRecipients int) *Server {
	s := &Server{Server: smtpcore.NewServer(b)}
	s.Server.Addr = addr
	s.Server.Domain = domain
	s.Server.ReadTimeout = 10 * time.Second
	s.Server.WriteTimeout = 10 * time.Second
	s.Server.MaxMessageBytes = maxMessageBytes
	s.Server.MaxRecipients = maxRecipients
	s.Server.AllowInsecureAuth = false
	return s
}

// Start begins listening in a separate goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Server.Addr)
	if err != nil {
		return fmt.Errorf("smtp listen failed: %w", err)
	}
	s.ln = ln
	go func() {
		logging.InfoLog("SMTP server listening on %s (domain=%s)", s.Server.Addr, s.Server.Domain)
		if err := s.Server.Serve(ln); err != nil {
			logging.ErrorLog("SMTP server stopped: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
}
