package payments

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/VNZray/capstone-project-sub008/internal/apiclient"
)

func TestClassify_Deterministic(t *testing.T) {
	for code := range codeTable {
		err := &ProcessorError{Status: 400, Errors: []APIError{{Code: "payment_failed", SubCode: code}}}
		first := Classify(err)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Classify(err), code)
		}
	}
}

func TestClassify_BlockedCodesShareGenericMessage(t *testing.T) {
	for code, e := range codeTable {
		got := Classify(&IntentFailedError{IntentID: "pi", Last: &PaymentError{SubCode: code}})
		if e.category == CategoryBlocked {
			assert.Equal(t, GenericDeclineTitle, got.Title, code)
			assert.Equal(t, GenericDeclineMessage, got.Message, code)
			assert.True(t, got.IsCardError, code)
			continue
		}
		assert.NotEqual(t, GenericDeclineMessage, got.Message, "documented code %s should have its own message", code)
	}
}

func TestClassify_Categories(t *testing.T) {
	cases := []struct {
		code     string
		category Category
		card     bool
	}{
		{"insufficient_funds", CategoryDeclined, true},
		{"stolen_card", CategoryBlocked, true},
		{"processor_unavailable", CategoryProcessor, false},
		{"incorrect_cvc", CategoryInvalidCard, true},
	}
	for _, tc := range cases {
		got := Classify(&ProcessorError{Errors: []APIError{{Code: tc.code}}})
		assert.Equal(t, tc.category, got.Category, tc.code)
		assert.Equal(t, tc.card, got.IsCardError, tc.code)
		assert.Equal(t, tc.code, got.Code)
	}
}

func TestClassify_SubCodeWinsOverCode(t *testing.T) {
	got := Classify(&ProcessorError{Errors: []APIError{{Code: "generic_decline", SubCode: "insufficient_funds"}}})
	assert.Equal(t, CategoryDeclined, got.Category)
	assert.Equal(t, "insufficient_funds", got.Code)
}

func TestClassify_UnmappedFallsBackToGenericDecline(t *testing.T) {
	got := Classify(&ProcessorError{Errors: []APIError{{Code: "something_new", Detail: "raw processor text"}}})
	assert.Equal(t, CategoryDeclined, got.Category)
	assert.Equal(t, GenericDeclineMessage, got.Message)
	assert.NotContains(t, got.Message, "raw processor text")
}

func TestClassify_NoCode(t *testing.T) {
	assert.Equal(t, CategoryUnknown, Classify(errors.New("connection reset")).Category)
	assert.Equal(t, CategoryUnknown, Classify(nil).Category)

	got := Classify(fmt.Errorf("%w: %w", ErrInitFailed, apiclient.ErrTimeout))
	assert.Equal(t, CategoryInitFailed, got.Category)
	assert.False(t, got.IsCardError)
}

func TestNormalize_PayloadShapes(t *testing.T) {
	want := Code{Code: "payment_failed", SubCode: "do_not_honor"}
	bodies := map[string]string{
		"top-level":                 `{"code":"payment_failed","sub_code":"do_not_honor"}`,
		"response.data.errors[0]":   `{"response":{"data":{"errors":[{"code":"payment_failed","sub_code":"do_not_honor"}]}}}`,
		"data.errors[0]":            `{"data":{"errors":[{"code":"payment_failed","sub_code":"do_not_honor"}]}}`,
		"errors[0]":                 `{"errors":[{"code":"payment_failed","sub_code":"do_not_honor"},{"code":"other"}]}`,
		"last_payment_error":        `{"last_payment_error":{"code":"payment_failed","sub_code":"do_not_honor"}}`,
		"attributes.last_pay_error": `{"data":{"attributes":{"last_payment_error":{"failed_code":"payment_failed","sub_code":"do_not_honor"}}}}`,
	}
	for name, body := range bodies {
		err := fmt.Errorf("wrapped: %w", &apiclient.ResponseError{Status: 400, Body: []byte(body)})
		assert.Equal(t, want, Normalize(err), name)
	}

	direct := &ProcessorError{Errors: []APIError{{Code: "payment_failed", SubCode: "do_not_honor"}}}
	assert.Equal(t, want, Normalize(direct))

	last := &IntentFailedError{Last: &PaymentError{FailedCode: "payment_failed", SubCode: "do_not_honor"}}
	assert.Equal(t, want, Normalize(last))
}

func TestNormalize_Garbage(t *testing.T) {
	assert.True(t, Normalize(&apiclient.ResponseError{Body: []byte("<html>")}).Empty())
	assert.True(t, Normalize(&IntentFailedError{}).Empty())
}
