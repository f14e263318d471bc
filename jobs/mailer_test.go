package jobs

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailerComposesMessage(t *testing.T) {
	m := NewSMTPMailer("mail.local", 1025, "no-reply@console.local")
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.Send(context.Background(), SendEmailPayload{To: "a@example.com", Subject: "Hello", Body: "line one\nline two"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:1025", gotAddr)
	assert.Equal(t, "no-reply@console.local", gotFrom)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	body := string(gotMsg)
	assert.Contains(t, body, "Subject: Hello\r\n")
	assert.Contains(t, body, "To: a@example.com\r\n")
	assert.Contains(t, body, "\r\n\r\nline one\r\nline two")
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	m := NewSMTPMailer("mail.local", 1025, "from@x")
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	err := m.Send(context.Background(), SendEmailPayload{To: "a@example.com\r\nBcc: b@example.com", Subject: "x"})
	assert.Error(t, err)
}

func TestSMTPMailerWrapsRelayError(t *testing.T) {
	boom := errors.New("connection refused")
	m := NewSMTPMailer("mail.local", 1025, "from@x")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := m.Send(context.Background(), SendEmailPayload{To: "a@example.com"})
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewSMTPMailer("mail.local", 1025, "from@x")
	assert.ErrorIs(t, m.Send(ctx, SendEmailPayload{To: "a@example.com"}), context.Canceled)
}
