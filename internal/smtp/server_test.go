package smtpserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMessageSinglepart(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Hi\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Meet at 5"

	msgs, err := parseMessage(strings.NewReader(raw), "alice@example.com", []string{"bob@example.com"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	require.Equal(t, "alice@example.com", msg.Sender)
	require.Equal(t, "bob@example.com", msg.Recipient)
	require.Equal(t, "Hi", msg.Subject)
	require.NotNil(t, msg.Single)
	require.Equal(t, "Meet at 5", msg.Body())
}

func TestParseMessageMultipartPrefersTextPlain(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Report\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>Hello</p>\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello plain\r\n" +
		"--BOUND--\r\n"

	msgs, err := parseMessage(strings.NewReader(raw), "alice@example.com", []string{"bob@example.com"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Multi, 2)
	require.Equal(t, "Hello plain", msgs[0].Body())
}

func TestParseMessageMultipartFallsBackToHTML(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Report\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>Only HTML here</p>\r\n" +
		"--BOUND--\r\n"

	msgs, err := parseMessage(strings.NewReader(raw), "alice@example.com", []string{"bob@example.com"})
	require.NoError(t, err)
	require.Equal(t, "<p>Only HTML here</p>", msgs[0].Body())
}

func TestParseMessageOneParsedMessagePerEnvelopeRecipient(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Hi\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body text"

	msgs, err := parseMessage(strings.NewReader(raw), "alice@example.com",
		[]string{"bob@example.com", "carol@example.com"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "bob@example.com", msgs[0].Recipient)
	require.Equal(t, "carol@example.com", msgs[1].Recipient)
}

func TestParseMessageDecodesEncodedWordSubject(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: =?UTF-8?B?QnVkZ2V0?=\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body"

	msgs, err := parseMessage(strings.NewReader(raw), "alice@example.com", []string{"bob@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Budget", msgs[0].Subject)
}

func TestParseMessageMultipartMixedSinglePlainPart(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Report\r\n" +
		"Content-Type: multipart/mixed; boundary=BOUND\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"good part\r\n" +
		"--BOUND--\r\n"

	msgs, err := parseMessage(strings.NewReader(raw), "alice@example.com", []string{"bob@example.com"})
	require.NoError(t, err)
	require.Equal(t, "good part", msgs[0].Body())
}

func TestSenderRateLimiterAllowsWithinBurstAndBlocksBeyond(t *testing.T) {
	limiter := newSenderRateLimiter(1, 2)
	sender := "alice@example.com"

	require.True(t, limiter.allow(sender))
	require.True(t, limiter.allow(sender))
	require.False(t, limiter.allow(sender), "third immediate call must exceed the burst of 2")
}

func TestSenderRateLimiterTracksSendersIndependently(t *testing.T) {
	limiter := newSenderRateLimiter(1, 1)

	require.True(t, limiter.allow("alice@example.com"))
	require.True(t, limiter.allow("bob@example.com"), "a different sender must have its own bucket")
}
