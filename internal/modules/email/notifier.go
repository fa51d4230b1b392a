package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/VNZray/capstone-project-sub008/internal/shared/money"
	"github.com/VNZray/capstone-project-sub008/pkg/view"
)

type OrderConfirmation struct {
	To            string
	Name          string
	Order         view.OrderRef
	PaymentMethod string
	Total         decimal.Decimal
}

type Notifier struct {
	sender Sender
}

func NewNotifier(s Sender) *Notifier {
	return &Notifier{sender: s}
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<html>
  <body style="font-family: sans-serif;">
    <h2>Your order is confirmed</h2>
    <p>Hi {{.Name}},</p>
    <p>We received order <strong>#{{.Order.OrderNumber}}</strong>.</p>
    <p>Show this arrival code at pickup: <strong style="font-size: 1.4em;">{{.Order.ArrivalCode}}</strong></p>
    <p><strong>Payment:</strong> {{.Method}}<br><strong>Total:</strong> {{.Total}}</p>
    <p>Thank you for ordering with City Venture.</p>
  </body>
</html>
`))

func methodLabel(m string) string {
	switch m {
	case "cash_on_pickup":
		return "Cash on pickup"
	case "":
		return "Online"
	}
	return strings.ToUpper(m[:1]) + strings.ReplaceAll(m[1:], "_", " ")
}

// OrderConfirmed sends the confirmation with the arrival code.
func (n *Notifier) OrderConfirmed(ctx context.Context, c OrderConfirmation) error {
	if c.To == "" {
		return fmt.Errorf("email: order %s has no recipient", c.Order.OrderID)
	}
	name := c.Name
	if name == "" {
		name = "there"
	}
	total := money.Format(c.Total, money.PHP)
	method := methodLabel(c.PaymentMethod)

	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, map[string]any{
		"Name":   name,
		"Order":  c.Order,
		"Method": method,
		"Total":  total,
	}); err != nil {
		return err
	}

	text := fmt.Sprintf("Hi %s,\n\nWe received order #%s.\nArrival code: %s\nPayment: %s\nTotal: %s\n\nThank you for ordering with City Venture.\n",
		name, c.Order.OrderNumber, c.Order.ArrivalCode, method, total)

	return n.sender.Send(ctx, Message{
		To:      c.To,
		ToName:  c.Name,
		Subject: fmt.Sprintf("Order #%s confirmed", c.Order.OrderNumber),
		Text:    text,
		HTML:    html.String(),
	})
}
