package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBuild(t *testing.T) {
	raw := string(Build("noreply@example.com", Message{
		To:      "ana@example.com",
		Subject: "Booking confirmed",
		Body:    "line one\nline two",
	}))

	assert.Contains(t, raw, "Subject: Booking confirmed\r\n")
	assert.Contains(t, raw, "To: ana@example.com\r\n")
	assert.Contains(t, raw, "\r\n\r\nline one\r\nline two\r\n")
}

func TestBuild_StripsHeaderInjection(t *testing.T) {
	raw := string(Build("noreply@example.com", Message{
		To:      "ana@example.com\r\nBcc: everyone@example.com",
		Subject: "hi",
	}))
	assert.NotContains(t, raw, "\r\nBcc:")
}

func TestLog_Send(t *testing.T) {
	assert.NoError(t, Log{L: zap.NewNop()}.Send(context.Background(), Message{To: "a@b.c"}))
}
