package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
)

func main() {
	url := flag.String("url", "http://localhost:8080/webhooks/paymongo", "Webhook URL")
	secret := flag.String("secret", os.Getenv("PAYMONGO_WEBHOOK_SECRET"), "Webhook secret")
	eventID := flag.String("event-id", "evt_"+randomHex(8), "Event ID")
	eventType := flag.String("type", payments.EventPaymentPaid, "Event type (payment.paid, payment.failed)")
	intentID := flag.String("intent", "", "Payment intent ID")
	amount := flag.Int64("amount", 15000, "Amount in centavos")
	failedCode := flag.String("failed-code", "", "Failure code for payment.failed")
	live := flag.Bool("live", false, "Sign as a live-mode event")
	dryRun := flag.Bool("dry-run", false, "Only print signature header, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret not provided and PAYMONGO_WEBHOOK_SECRET not set\n")
		os.Exit(1)
	}
	if *intentID == "" {
		fmt.Fprintf(os.Stderr, "Error: -intent is required\n")
		os.Exit(1)
	}

	ev := payments.WebhookEvent{
		EventID:        *eventID,
		Type:           *eventType,
		Livemode:       *live,
		PaymentID:      "pay_" + randomHex(8),
		IntentID:       *intentID,
		AmountCentavos: *amount,
		Currency:       "PHP",
	}
	if ev.Type == payments.EventPaymentFailed {
		ev.FailedCode = *failedCode
		if ev.FailedCode == "" {
			ev.FailedCode = "generic_decline"
		}
		ev.FailedMessage = "The payment was declined."
	}

	body, err := payments.WebhookBody(ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building payload: %v\n", err)
		os.Exit(1)
	}

	sigHeader := payments.SignatureHeaderValue([]byte(*secret), time.Now().Unix(), body, *live)

	fmt.Printf("%s: %s\n", payments.SignatureHeader, sigHeader)
	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payments.SignatureHeader, sigHeader)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
