package processor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/subscriptions/sub_1":
			_, _ = w.Write([]byte(`{"id":"sub_1","object":"subscription","customer":"cus_1","status":"active","items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_annual"},"current_period_start":1,"current_period_end":2}]}}`))
		case "/v1/checkout/sessions/cs_1/line_items":
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"object":"list","has_more":false,"data":[{"id":"li_1","quantity":3,"price":{"id":"price_br"}},{"id":"li_2","quantity":2}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such subscription"}}`))
		}
	}))
	defer srv.Close()

	c := NewHTTPClient("sk_test", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	ctx := context.Background()

	sub, err := c.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "cus_1", sub.Customer)
	assert.Equal(t, []string{"price_annual"}, sub.PriceIDs())
	require.NotNil(t, sub.Period().End)
	assert.Equal(t, int64(2), sub.Period().End.Unix())

	items, err := c.ListLineItems(ctx, "cs_1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].Quantity)
	assert.Equal(t, "price_br", items[0].Price.ID)

	_, err = c.GetSubscription(ctx, "sub_missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "No such subscription", apiErr.Message)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
}
