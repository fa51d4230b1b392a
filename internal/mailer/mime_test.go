package mailer

import (
	"context"
	"io"
	"mime/quotedprintable"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMIMEMessage_Alternative(t *testing.T) {
	raw, err := buildMIMEMessage(Email{
		FromName: "City Venture",
		From:     "no-reply@cityventure.ph",
		To:       []string{"juan@example.ph"},
		Subject:  "Order ORD-0001 confirmed",
		TextBody: "Total: ₱150.00",
		HTMLBody: "<p>Total: ₱150.00</p>",
		Headers:  map[string]string{"X-Order-ID": "o-1", "X-Bad": "a\r\nBcc: evil@example.com"},
	}, "cityventure.ph")
	require.NoError(t, err)

	assert.Contains(t, raw, "From: City Venture <no-reply@cityventure.ph>\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "X-Order-ID: o-1\r\n")
	assert.NotContains(t, raw, "evil@example.com")
	assert.Contains(t, raw, "Content-Transfer-Encoding: quoted-printable")

	idx := strings.Index(raw, "Content-Type: text/plain")
	require.Greater(t, idx, 0)
	part := raw[idx:]
	part = part[strings.Index(part, "\r\n\r\n")+4:]
	part = part[:strings.Index(part, "\r\n--")]
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(part)))
	require.NoError(t, err)
	assert.Equal(t, "Total: ₱150.00", strings.TrimSpace(string(decoded)))
}

func TestBuildMIMEMessage_Required(t *testing.T) {
	_, err := buildMIMEMessage(Email{From: "a@b.c", Subject: "s", TextBody: "x"}, "d")
	assert.Error(t, err)
	_, err = buildMIMEMessage(Email{To: []string{"x@y.z"}, From: "a@b.c", Subject: "s"}, "d")
	assert.Error(t, err)
}

func TestMock(t *testing.T) {
	m := &Mock{}
	require.NoError(t, m.Send(context.Background(), Email{Subject: "hi"}))
	assert.Len(t, m.Messages(), 1)
}
