package mailer

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"strings"
	"time"
)

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), addr)
}

func newMessageID(domain string) string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return fmt.Sprintf("<%s@%s>", hex.EncodeToString(b), domain)
}

// buildMIMEMessage renders headers and a text and/or HTML body. Bodies are
// quoted-printable so peso signs and accented names survive 7-bit relays.
func buildMIMEMessage(e Email, messageIDDomain string) (string, error) {
	if err := e.validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", newMessageID(messageIDDomain))
	fmt.Fprintf(&b, "From: %s\r\n", formatAddress(e.FromName, e.From))
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	for k, v := range e.Headers {
		if k == "" || v == "" || strings.ContainsAny(k+v, "\r\n") {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}

	switch {
	case e.TextBody != "" && e.HTMLBody != "":
		boundary := randomBoundary()
		fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		if err := writePart(&b, "text/plain", e.TextBody); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		if err := writePart(&b, "text/html", e.HTMLBody); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "--%s--\r\n", boundary)
	case e.HTMLBody != "":
		if err := writePart(&b, "text/html", e.HTMLBody); err != nil {
			return "", err
		}
	default:
		if err := writePart(&b, "text/plain", e.TextBody); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func writePart(b *strings.Builder, contentType, body string) error {
	fmt.Fprintf(b, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	if _, err := w.Write([]byte(body)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	b.Write(buf.Bytes())
	b.WriteString("\r\n")
	return nil
}

func randomBoundary() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "alt-" + hex.EncodeToString(b)
}
