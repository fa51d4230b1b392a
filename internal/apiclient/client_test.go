package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SendsJSONAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "v", in["k"])
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", time.Second).WithToken("tok")
	var out struct{ OK bool }
	require.NoError(t, c.Do(context.Background(), http.MethodPost, "/orders", map[string]string{"k": "v"}, &out))
	assert.True(t, out.OK)
}

func TestDo_BasicKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "pk_test", user)
		assert.Empty(t, pass)
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second).WithToken("tok").WithBasicKey("pk_test")
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/x", nil, nil))
}

func TestDo_ResponseError(t *testing.T) {
	cases := map[string]string{
		`{"message":"Product is out of stock"}`:         "Product is out of stock",
		`{"error":"unauthorized"}`:                      "unauthorized",
		`{"errors":[{"code":"x","detail":"bad card"}]}`: "bad card",
		`not json`:                                      "",
	}
	for body, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(body))
		}))

		err := New(srv.URL, time.Second).Do(context.Background(), http.MethodGet, "/", nil, nil)
		var re *ResponseError
		require.True(t, errors.As(err, &re), body)
		assert.Equal(t, http.StatusUnprocessableEntity, re.Status)
		assert.Equal(t, want, re.Message)
		assert.Equal(t, body, string(re.Body))
		srv.Close()
	}
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	err := New(srv.URL, 20*time.Millisecond).Do(context.Background(), http.MethodGet, "/", nil, nil)
	assert.ErrorIs(t, err, ErrTimeout)
}
