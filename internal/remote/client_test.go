package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/bento/internal/models"
)

type order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchDecodesBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		writeJSON(w, http.StatusOK, []order{{ID: "o1", Status: "open"}})
	})

	got, err := FetchFunc[[]order](c, "/api/orders")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []order{{ID: "o1", Status: "open"}}, got)
}

func TestNonSuccessIsStatusError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Only the creator can close this order"})
	})

	err := c.Fetch(context.Background(), "/api/orders/o1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRemote)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, "Only the creator can close this order", se.Message)
}

func TestStatusErrorWithoutJSONBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Post(context.Background(), "/api/orders", map[string]string{"restaurant_id": "r1"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "Bad Gateway", se.Message)
}

func TestMutateSendsBodyAndReturnsPayload(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"menu_item_id":"m1","order_id":"o1"}`, string(raw))
		writeJSON(w, http.StatusCreated, map[string]string{"id": "i9"})
	})

	payload, err := c.Mutate(context.Background(), http.MethodPost, "/api/order-items",
		map[string]string{"order_id": "o1", "menu_item_id": "m1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"i9"}`, string(payload))
}

func TestMutateWithoutPayload(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	payload, err := c.Delete(context.Background(), "/api/order-items/i9")
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestTransportErrorIsRemote(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, nil)

	err := c.Fetch(context.Background(), "/api/orders", nil)
	assert.ErrorIs(t, err, models.ErrRemote)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
