package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader  = "Paymongo-Signature"
	webhookTolerance = 5 * time.Minute
)

// Sign computes the hex HMAC-SHA256 of "<t>.<body>".
func Sign(secret []byte, t int64, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(strconv.FormatInt(t, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// SignatureHeaderValue builds "t=<unix>,te=<sig>" (test mode) or ",li=" (live).
func SignatureHeaderValue(secret []byte, t int64, body []byte, live bool) string {
	sig := Sign(secret, t, body)
	if live {
		return fmt.Sprintf("t=%d,te=,li=%s", t, sig)
	}
	return fmt.Sprintf("t=%d,te=%s,li=", t, sig)
}

// VerifyWebhook checks the signature header and parses the event. Live
// events must carry a matching li signature, test events a matching te.
func VerifyWebhook(secret []byte, header string, body []byte, now time.Time) (WebhookEvent, error) {
	var ts int64
	var te, li string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return WebhookEvent{}, ErrBadSignature
			}
			ts = n
		case "te":
			te = v
		case "li":
			li = v
		}
	}
	if ts == 0 || (te == "" && li == "") {
		return WebhookEvent{}, ErrBadSignature
	}

	if d := now.Sub(time.Unix(ts, 0)); d > webhookTolerance || d < -webhookTolerance {
		return WebhookEvent{}, ErrStaleWebhook
	}

	ev, err := ParseWebhook(body)
	if err != nil {
		// an unparsable body is only reported once it is known to be signed
		if !hmac.Equal([]byte(firstNonEmpty(li, te)), []byte(Sign(secret, ts, body))) {
			return WebhookEvent{}, ErrBadSignature
		}
		return WebhookEvent{}, err
	}

	got := te
	if ev.Livemode {
		got = li
	}
	if got == "" || !hmac.Equal([]byte(got), []byte(Sign(secret, ts, body))) {
		return WebhookEvent{}, ErrBadSignature
	}
	return ev, nil
}

type webhookBody struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type     string `json:"type"`
			Livemode bool   `json:"livemode"`
			Data     struct {
				ID         string `json:"id"`
				Attributes struct {
					Amount          int64  `json:"amount"`
					Currency        string `json:"currency"`
					PaymentIntentID string `json:"payment_intent_id"`
					Status          string `json:"status"`
					FailedCode      string `json:"failed_code"`
					FailedMessage   string `json:"failed_message"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

func ParseWebhook(body []byte) (WebhookEvent, error) {
	var b webhookBody
	if err := json.Unmarshal(body, &b); err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook: decode: %w", err)
	}
	a := b.Data.Attributes
	ev := WebhookEvent{
		EventID:        b.Data.ID,
		Type:           a.Type,
		Livemode:       a.Livemode,
		PaymentID:      a.Data.ID,
		IntentID:       a.Data.Attributes.PaymentIntentID,
		AmountCentavos: a.Data.Attributes.Amount,
		Currency:       a.Data.Attributes.Currency,
		FailedCode:     a.Data.Attributes.FailedCode,
		FailedMessage:  a.Data.Attributes.FailedMessage,
	}
	if ev.EventID == "" || ev.Type == "" {
		return WebhookEvent{}, fmt.Errorf("webhook: missing event id or type")
	}
	return ev, nil
}

// WebhookBody renders ev in the processor's envelope. Used by tooling that
// replays events against a local server.
func WebhookBody(ev WebhookEvent) ([]byte, error) {
	var b webhookBody
	b.Data.ID = ev.EventID
	b.Data.Attributes.Type = ev.Type
	b.Data.Attributes.Livemode = ev.Livemode
	b.Data.Attributes.Data.ID = ev.PaymentID
	p := &b.Data.Attributes.Data.Attributes
	p.Amount = ev.AmountCentavos
	p.Currency = ev.Currency
	p.PaymentIntentID = ev.IntentID
	p.FailedCode = ev.FailedCode
	p.FailedMessage = ev.FailedMessage
	p.Status = "paid"
	if ev.Type == EventPaymentFailed {
		p.Status = "failed"
	}
	return json.Marshal(b)
}
