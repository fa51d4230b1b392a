package grace

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VNZray/capstone-project-sub008/internal/modules/authbridge"
	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
	"github.com/VNZray/capstone-project-sub008/internal/modules/orders"
	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
)

// callLog records the order in which collaborators were hit.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.list() {
		if c == name {
			n++
		}
	}
	return n
}

type fakeCart struct {
	log *callLog
	err error
}

func (f *fakeCart) Clear(context.Context) error {
	f.log.add("cart.clear")
	return f.err
}

type fakeOrders struct {
	log     *callLog
	err     error
	created orders.Created
	gate    chan struct{} // blocks Create until closed when set
	lastReq orders.CreateRequest
}

func (f *fakeOrders) Create(_ context.Context, req orders.CreateRequest) (orders.Created, error) {
	f.log.add("orders.create")
	if f.gate != nil {
		<-f.gate
	}
	f.lastReq = req
	if f.err != nil {
		return orders.Created{}, f.err
	}
	return f.created, nil
}

type fakeGateway struct {
	log       *callLog
	intent    payments.Intent
	intentErr error
	methodErr error
	attach    payments.AttachResult
	attachErr error

	// intentGate blocks CreateIntent until closed when set; the call fails
	// with ctx.Err() if its context ends first.
	intentGate    chan struct{}
	intentEntered chan struct{}

	mu       sync.Mutex
	card     *checkout.CardDetails
	ewallet  payments.EWalletRequest
	attachPM payments.AttachRequest
}

func (f *fakeGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (payments.Intent, error) {
	f.log.add("payments.create_intent")
	if f.intentGate != nil {
		close(f.intentEntered)
		select {
		case <-f.intentGate:
		case <-ctx.Done():
			return payments.Intent{}, ctx.Err()
		}
	}
	return f.intent, f.intentErr
}

func (f *fakeGateway) CreatePaymentMethod(_ context.Context, req payments.MethodRequest) (string, error) {
	f.log.add("payments.create_method")
	f.mu.Lock()
	f.card = req.Card
	f.mu.Unlock()
	if f.methodErr != nil {
		return "", f.methodErr
	}
	return "pm_1", nil
}

func (f *fakeGateway) AttachPaymentMethod(_ context.Context, req payments.AttachRequest) (payments.AttachResult, error) {
	f.log.add("payments.attach_method")
	f.mu.Lock()
	f.attachPM = req
	f.mu.Unlock()
	return f.attach, f.attachErr
}

func (f *fakeGateway) AttachEWallet(_ context.Context, req payments.EWalletRequest) (payments.AttachResult, error) {
	f.log.add("payments.attach_ewallet")
	f.mu.Lock()
	f.ewallet = req
	f.mu.Unlock()
	return f.attach, f.attachErr
}

func (f *fakeGateway) PollStatus(context.Context, string) (payments.IntentStatus, error) {
	f.log.add("payments.poll")
	return payments.IntentStatus{}, nil
}

type fakeBridge struct {
	log    *callLog
	result authbridge.Result
	err    error
	req    authbridge.Request
}

func (f *fakeBridge) Open(_ context.Context, req authbridge.Request) (authbridge.Result, error) {
	f.log.add("bridge.open")
	f.req = req
	if f.err != nil {
		return authbridge.Result{}, f.err
	}
	if req.Ready != nil {
		req.Ready()
	}
	return f.result, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	log     *callLog
	cart    *fakeCart
	orders  *fakeOrders
	gateway *fakeGateway
	bridge  *fakeBridge
	clock   *clock

	mu       sync.Mutex
	cues     []int
	finished []Summary
}

func newHarness() *harness {
	log := &callLog{}
	return &harness{
		log:  log,
		cart: &fakeCart{log: log},
		orders: &fakeOrders{log: log, created: orders.Created{
			OrderID: "o-1", OrderNumber: "ORD-0001", ArrivalCode: "AB12",
		}},
		gateway: &fakeGateway{log: log, intent: payments.Intent{ID: "pi_1", ClientKey: "pi_1_key"}},
		bridge:  &fakeBridge{log: log, result: authbridge.Result{Type: authbridge.Dismiss}},
		clock:   &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Cart:      h.cart,
		Orders:    h.orders,
		Payments:  h.gateway,
		Bridge:    h.bridge,
		ReturnURL: payments.ReturnURLBuilder("https://api.example.ph/api"),
		Now:       h.clock.Now,
		Tick:      time.Millisecond,
		Hooks: Hooks{
			OnCue: func(left int) {
				h.mu.Lock()
				h.cues = append(h.cues, left)
				h.mu.Unlock()
			},
			OnFinish: func(s Summary) {
				h.mu.Lock()
				h.finished = append(h.finished, s)
				h.mu.Unlock()
			},
		},
	}
}

func (h *harness) draft(method checkout.PaymentMethod, typ checkout.OnlineType, total string) checkout.OrderDraft {
	d := checkout.OrderDraft{
		BusinessID:        "biz-1",
		UserID:            "user-1",
		Items:             []checkout.LineItem{{ProductID: "p-1", Quantity: 2}},
		PickupAt:          h.clock.Now().Add(time.Hour),
		PaymentMethod:     method,
		PaymentMethodType: typ,
		Total:             decimal.RequireFromString(total),
	}
	if method == checkout.Online {
		d.SkipCheckoutSession = true
		d.Billing = &checkout.BillingInfo{Name: "Juan Dela Cruz", Email: "juan@example.ph"}
		if typ == checkout.TypeCard {
			d.Billing.Card = &checkout.CardDetails{Number: "4343434343434345", ExpMonth: 12, ExpYear: 2030, CVC: "123"}
		}
	}
	return d
}
