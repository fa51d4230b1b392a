package apphttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VNZray/capstone-project-sub008/internal/auth"
	"github.com/VNZray/capstone-project-sub008/internal/events"
	"github.com/VNZray/capstone-project-sub008/internal/http/handlers"
	"github.com/VNZray/capstone-project-sub008/internal/modules/authbridge"
	"github.com/VNZray/capstone-project-sub008/internal/modules/cart"
	"github.com/VNZray/capstone-project-sub008/internal/modules/grace"
	"github.com/VNZray/capstone-project-sub008/internal/modules/ledger"
	"github.com/VNZray/capstone-project-sub008/internal/modules/orders"
	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
	"github.com/VNZray/capstone-project-sub008/pkg/view"
)

var webhookSecret = "whsk_test"

type stubOrders struct{ created atomic.Int32 }

func (s *stubOrders) Create(context.Context, orders.CreateRequest) (orders.Created, error) {
	s.created.Add(1)
	return orders.Created{OrderID: "o-1", OrderNumber: "ORD-0001", ArrivalCode: "AB12"}, nil
}

type stubGateway struct {
	mu     sync.Mutex
	status payments.IntentStatus
}

func (g *stubGateway) CreateIntent(context.Context, payments.IntentRequest) (payments.Intent, error) {
	return payments.Intent{ID: "pi_1", ClientKey: "pi_1_key", Status: payments.StatusAwaitingPaymentMethod}, nil
}

func (g *stubGateway) CreatePaymentMethod(context.Context, payments.MethodRequest) (string, error) {
	return "pm_1", nil
}

func (g *stubGateway) AttachPaymentMethod(context.Context, payments.AttachRequest) (payments.AttachResult, error) {
	return payments.AttachResult{Status: payments.StatusAwaitingNextAction, RedirectURL: "https://3ds.example/auth"}, nil
}

func (g *stubGateway) AttachEWallet(context.Context, payments.EWalletRequest) (payments.AttachResult, error) {
	return payments.AttachResult{Status: payments.StatusAwaitingNextAction, RedirectURL: "https://gcash.example/auth"}, nil
}

func (g *stubGateway) PollStatus(_ context.Context, id string) (payments.IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.status
	st.ID = id
	return st, nil
}

type nopWindow struct{}

func (nopWindow) Close() error { return nil }

type nopLauncher struct{}

func (nopLauncher) Launch(context.Context, authbridge.Request) (authbridge.Window, error) {
	return nopWindow{}, nil
}

type env struct {
	router   *gin.Engine
	carts    *cart.MemoryStore
	attempts *ledger.MemoryStore
	bridge   *authbridge.Bridge
	orders   *stubOrders
	gateway  *stubGateway
	verifier *auth.Verifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	sessions := grace.NewRegistry(ctx, time.Minute)
	t.Cleanup(func() {
		cancel()
		sessions.Wait()
	})

	e := &env{
		carts:    cart.NewMemoryStore(),
		attempts: ledger.NewMemoryStore(),
		bridge:   authbridge.New(nopLauncher{}, time.Minute),
		orders:   &stubOrders{},
		gateway:  &stubGateway{status: payments.IntentStatus{Status: payments.StatusSucceeded}},
		verifier: auth.NewVerifier("jwt_test"),
	}
	factory := &grace.Factory{
		Carts:     e.carts,
		Orders:    e.orders,
		Payments:  e.gateway,
		Bridge:    e.bridge,
		ReturnURL: payments.ReturnURLBuilder("https://api.example.ph/api"),
		Logger:    logger,
	}

	e.router = NewRouter(Deps{
		Logger:   logger,
		Verifier: e.verifier,
		Cart:     handlers.NewCartHandler(e.carts),
		Checkout: handlers.NewCheckoutHandler(e.carts, sessions, factory, e.bridge),
		Payments: handlers.NewPaymentsHandler(payments.NewReconciler(e.gateway, time.Millisecond, time.Second), e.attempts),
		Return:   handlers.NewPaymentReturnHandler(sessions, e.bridge, "cityventure://", logger),
		Webhooks: handlers.NewWebhookHandler(logger, webhookSecret, payments.NewWebhookService(e.attempts, events.Nop{})),
	})
	return e
}

func (e *env) token(t *testing.T, userID string) string {
	tok, err := e.verifier.Issue(auth.Identity{UserID: userID, Email: userID + "@example.ph"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) fillCart(t *testing.T, userID string) {
	require.NoError(t, e.carts.Put(context.Background(), cart.Snapshot{
		UserID:     userID,
		BusinessID: "biz-1",
		Items:      []cart.Item{{ProductID: "p-1", Name: "Halo-halo", Quantity: 2, UnitPrice: decimal.NewFromInt(75)}},
		Total:      decimal.NewFromInt(150),
	}))
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) grace.State {
	t.Helper()
	var s grace.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s), w.Body.String())
	return s
}

func sessionBody(method, typ string) map[string]any {
	b := map[string]any{
		"pickup_datetime": time.Now().Add(time.Hour).Format(time.RFC3339),
		"payment_method":  method,
	}
	if typ != "" {
		b["payment_method_type"] = typ
		billing := map[string]any{"name": "Juan Dela Cruz", "email": "juan@example.ph"}
		if typ == "card" {
			billing["card"] = map[string]any{"number": "4343434343434345", "exp_month": 12, "exp_year": 2030, "cvc": "123"}
		}
		b["billing"] = billing
	}
	return b
}

func (e *env) startSession(t *testing.T, userID, method, typ string) grace.State {
	t.Helper()
	e.fillCart(t, userID)
	w := e.do(t, http.MethodPost, "/api/checkout/sessions", userID, sessionBody(method, typ))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s := decodeState(t, w)
	require.Equal(t, grace.PhaseCounting, s.Phase)
	return s
}

func (e *env) proceedToBridge(t *testing.T, userID, id string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/checkout/sessions/"+id+"/proceed", userID, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	// the app acts as soon as the session shows a redirect URL
	require.Eventually(t, func() bool {
		w := e.do(t, http.MethodGet, "/api/checkout/sessions/"+id, userID, nil)
		var s grace.State
		return w.Code == http.StatusOK && json.Unmarshal(w.Body.Bytes(), &s) == nil && s.RedirectURL != ""
	}, 2*time.Second, time.Millisecond)
}

func (e *env) finalState(t *testing.T, userID, id string) grace.State {
	t.Helper()
	w := e.do(t, http.MethodGet, "/api/checkout/sessions/"+id+"?wait=1", userID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	s := decodeState(t, w)
	require.NotNil(t, s.Navigation, w.Body.String())
	return s
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAPIRequiresToken(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Authentication required.", body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestCartPutGet(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPut, "/api/cart", "u-1", map[string]any{
		"business_id": "biz-1",
		"items":       []map[string]any{{"product_id": "p-1", "quantity": 3, "unit_price": "40.50"}},
		"discount":    "1.50",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/cart", "u-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap cart.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "120", snap.Total.String())

	w = e.do(t, http.MethodPut, "/api/cart", "u-1", map[string]any{
		"business_id": "biz-1",
		"items":       []map[string]any{{"product_id": "p-1", "quantity": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_EmptyCart(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/checkout/sessions", "u-1", sessionBody("cash_on_pickup", ""))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"items"`)
}

func TestCreateSession_LocalValidationStartsNothing(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t, "u-1")

	body := sessionBody("cash_on_pickup", "")
	body["pickup_datetime"] = time.Now().Add(10 * time.Minute).Format(time.RFC3339)
	w := e.do(t, http.MethodPost, "/api/checkout/sessions", "u-1", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "pickup_datetime")

	body = sessionBody("online", "gcash")
	delete(body, "billing")
	w = e.do(t, http.MethodPost, "/api/checkout/sessions", "u-1", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "billing")
}

func TestCashSession_ProceedConfirms(t *testing.T) {
	e := newEnv(t)
	s := e.startSession(t, "u-1", "cash_on_pickup", "")

	w := e.do(t, http.MethodPost, "/api/checkout/sessions/"+s.ID+"/proceed", "u-1", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	final := e.finalState(t, "u-1", s.ID)
	assert.Equal(t, view.ScreenOrderConfirmation, final.Navigation.Screen)
	assert.Equal(t, "AB12", final.Navigation.Order.ArrivalCode)

	_, err := e.carts.Get(context.Background(), "u-1")
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestSession_CancelFlow(t *testing.T) {
	e := newEnv(t)
	s := e.startSession(t, "u-1", "cash_on_pickup", "")
	base := "/api/checkout/sessions/" + s.ID

	w := e.do(t, http.MethodPost, base+"/cancel-prompt", "u-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeState(t, w).IsCancelling)

	w = e.do(t, http.MethodDelete, base+"/cancel-prompt", "u-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeState(t, w).IsCancelling)

	w = e.do(t, http.MethodPost, base+"/cancel", "u-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, view.ScreenCheckoutCancelled, decodeState(t, w).Navigation.Screen)

	w = e.do(t, http.MethodPost, base+"/proceed", "u-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = e.do(t, http.MethodPost, base+"/cancel", "u-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// the cart is untouched
	_, err := e.carts.Get(context.Background(), "u-1")
	assert.NoError(t, err)
}

func TestSession_OtherUserGetsNotFound(t *testing.T) {
	e := newEnv(t)
	s := e.startSession(t, "u-1", "cash_on_pickup", "")

	w := e.do(t, http.MethodGet, "/api/checkout/sessions/"+s.ID, "u-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, http.MethodPost, "/api/checkout/sessions/"+s.ID+"/cancel", "u-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCard3DSCancel(t *testing.T) {
	e := newEnv(t)
	s := e.startSession(t, "u-1", "online", "card")
	e.proceedToBridge(t, "u-1", s.ID)

	w := e.do(t, http.MethodPost, "/api/checkout/sessions/"+s.ID+"/redirect", "u-1", map[string]string{"type": "cancel"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	final := e.finalState(t, "u-1", s.ID)
	assert.Equal(t, view.ScreenPaymentCancel, final.Navigation.Screen)
	assert.Equal(t, view.ReasonCancelled, final.Navigation.Reason)
	assert.Equal(t, "o-1", final.Navigation.Order.OrderID)
	assert.Equal(t, "pi_1", final.Navigation.PaymentIntentID)

	w = e.do(t, http.MethodPost, "/api/checkout/sessions/"+s.ID+"/redirect", "u-1", map[string]string{"type": "cancel"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRedirect_RejectsUnknownType(t *testing.T) {
	e := newEnv(t)
	s := e.startSession(t, "u-1", "online", "card")
	w := e.do(t, http.MethodPost, "/api/checkout/sessions/"+s.ID+"/redirect", "u-1", map[string]string{"type": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentReturnResolvesBridge(t *testing.T) {
	e := newEnv(t)
	s := e.startSession(t, "u-1", "online", "gcash")
	e.proceedToBridge(t, "u-1", s.ID)

	w := e.do(t, http.MethodGet, "/orders/o-1/payment-success", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "cityventure://payment-success?orderId=o-1", w.Header().Get("Location"))

	final := e.finalState(t, "u-1", s.ID)
	assert.Equal(t, view.ScreenPaymentProcessing, final.Navigation.Screen)
	assert.Equal(t, "gcash", final.Navigation.PaymentMethodType)
}

func TestPaymentStatus(t *testing.T) {
	e := newEnv(t)
	intent := "pi_1"
	require.NoError(t, e.attempts.SaveAttempt(context.Background(), &ledger.Attempt{
		ID: "s-1", UserID: "u-1", BusinessID: "biz-1", PaymentMethod: "online",
		Currency: "PHP", Phase: "reconciling", IntentID: &intent, PaymentStatus: ledger.PaymentPending,
	}))

	w := e.do(t, http.MethodGet, "/api/payments/pi_1/status?wait=1", "u-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out payments.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Final)
	assert.Equal(t, view.ScreenOrderConfirmation, out.Screen)

	w = e.do(t, http.MethodGet, "/api/payments/pi_1/status", "u-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, http.MethodGet, "/api/payments/pi_404/status", "u-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func webhookRequest(body []byte, header string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paymongo", bytes.NewReader(body))
	req.Header.Set(payments.SignatureHeader, header)
	return req
}

func TestWebhook(t *testing.T) {
	e := newEnv(t)
	intent := "pi_w"
	require.NoError(t, e.attempts.SaveAttempt(context.Background(), &ledger.Attempt{
		ID: "s-2", UserID: "u-1", BusinessID: "biz-1", PaymentMethod: "online",
		Currency: "PHP", Phase: "reconciling", IntentID: &intent, PaymentStatus: ledger.PaymentPending,
	}))

	body := []byte(fmt.Sprintf(`{"data":{"id":"evt_1","attributes":{"type":"payment.paid","livemode":false,"data":{"id":"pay_1","attributes":{"amount":15000,"currency":"PHP","payment_intent_id":%q,"status":"paid"}}}}}`, intent))
	sig := payments.SignatureHeaderValue([]byte(webhookSecret), time.Now().Unix(), body, false)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, webhookRequest(body, sig))
		assert.Equal(t, http.StatusOK, w.Code, "delivery %d", i+1)
	}

	att, err := e.attempts.FindByIntent(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentSucceeded, att.PaymentStatus)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, webhookRequest(body, "t=1,te=deadbeef,li="))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_SecondSessionForSameUserConflicts(t *testing.T) {
	e := newEnv(t)
	first := e.startSession(t, "u-1", "cash_on_pickup", "")

	w := e.do(t, http.MethodPost, "/api/checkout/sessions", "u-1", sessionBody("cash_on_pickup", ""))
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, first.ID, body.Fields["session_id"])

	w = e.do(t, http.MethodPost, "/api/checkout/sessions/"+first.ID+"/proceed", "u-1", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	e.finalState(t, "u-1", first.ID)
	assert.Equal(t, int32(1), e.orders.created.Load())

	// another user is not blocked
	e.startSession(t, "u-2", "cash_on_pickup", "")
}

func TestDeleteSession(t *testing.T) {
	e := newEnv(t)
	s := e.startSession(t, "u-1", "cash_on_pickup", "")
	path := "/api/checkout/sessions/" + s.ID

	w := e.do(t, http.MethodDelete, path, "u-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "still counting")

	w = e.do(t, http.MethodPost, path+"/cancel", "u-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodDelete, path, "u-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, http.MethodDelete, path, "u-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, path, "u-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentStatus_WebhookSettlesBeforeProcessor(t *testing.T) {
	e := newEnv(t)
	e.gateway.mu.Lock()
	e.gateway.status = payments.IntentStatus{Status: payments.StatusProcessing}
	e.gateway.mu.Unlock()

	for _, tc := range []struct {
		intent, event string
		screen        view.Screen
	}{
		{"pi_paid", payments.EventPaymentPaid, view.ScreenOrderConfirmation},
		{"pi_failed", payments.EventPaymentFailed, view.ScreenPaymentFailed},
	} {
		intent := tc.intent
		require.NoError(t, e.attempts.SaveAttempt(context.Background(), &ledger.Attempt{
			ID: "s-" + intent, UserID: "u-1", BusinessID: "biz-1", PaymentMethod: "online",
			Currency: "PHP", Phase: "reconciling", IntentID: &intent, PaymentStatus: ledger.PaymentPending,
		}))
		body, err := payments.WebhookBody(payments.WebhookEvent{
			EventID: "evt_" + intent, Type: tc.event, IntentID: intent,
			AmountCentavos: 15000, Currency: "PHP", FailedCode: "insufficient_funds",
		})
		require.NoError(t, err)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, webhookRequest(body, payments.SignatureHeaderValue([]byte(webhookSecret), time.Now().Unix(), body, false)))
		require.Equal(t, http.StatusOK, w.Code)

		w = e.do(t, http.MethodGet, "/api/payments/"+intent+"/status", "u-1", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out payments.Outcome
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.True(t, out.Final, intent)
		assert.Equal(t, tc.screen, out.Screen, intent)
		if tc.screen == view.ScreenPaymentFailed {
			require.NotNil(t, out.Error)
			assert.NotEmpty(t, out.Error.Title)
		}
	}
}
