package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
)

type staticIdentity string

func (s staticIdentity) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:    server.URL + "/api/",
		HTTPClient: server.Client(),
		Identity:   staticIdentity("user-7"),
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAbsoluteBaseURL(t *testing.T) {
	_, err := NewClient(Options{})
	require.Error(t, err)

	_, err = NewClient(Options{BaseURL: "/relative"})
	require.Error(t, err)

	client, err := NewClient(Options{BaseURL: "https://api.example.com", Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", client.BaseURL())
}

func TestFetchAllDecodesAndNormalizesProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "user-7", r.Header.Get(userIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":"a","name":"Burger","description":"beef","imageUrl":"http://img/a","price":10.5,"category":"Food","includesDrink":true,"createdAt":"2024-01-01T00:00:00Z"},
			{"id":"b","name":"Mystery","price":"2.25","category":null},
			{"id":"c","name":"Water","price":1}
		]`)
	})

	products, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "a", products[0].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, "Food", products[0].CategoryOrDefault())
	assert.True(t, products[0].HasDrink())

	assert.Equal(t, UncategorizedCategory, products[1].CategoryOrDefault())
	assert.True(t, products[1].Price.Equal(decimal.RequireFromString("2.25")))
	assert.False(t, products[1].HasDrink())

	assert.Equal(t, UncategorizedCategory, products[2].CategoryOrDefault())
	assert.Equal(t, "", products[2].Description)
}

func TestFetchAllEmptyCatalog(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	products, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestFetchAllClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   pkgerrors.Code
	}{
		{name: "server error", status: http.StatusServiceUnavailable, body: `down`, code: pkgerrors.CodeNetwork},
		{name: "not found", status: http.StatusNotFound, body: ``, code: pkgerrors.CodeNetwork},
		{name: "malformed json", status: http.StatusOK, body: `{"id":`, code: pkgerrors.CodeDecode},
		{name: "wrong shape", status: http.StatusOK, body: `{"id":"a"}`, code: pkgerrors.CodeDecode},
		{name: "missing id", status: http.StatusOK, body: `[{"name":"x","price":1}]`, code: pkgerrors.CodeDecode},
		{name: "missing name", status: http.StatusOK, body: `[{"id":"x","price":1}]`, code: pkgerrors.CodeDecode},
		{name: "negative price", status: http.StatusOK, body: `[{"id":"x","name":"x","price":-1}]`, code: pkgerrors.CodeDecode},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := client.FetchAll(context.Background())
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestFetchAllNonSuccessCarriesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchAll(context.Background())
	status, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestFetchAllUnreachableServerIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(Options{BaseURL: url})
	require.NoError(t, err)

	_, err = client.FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNetwork))
	assert.True(t, pkgerrors.As(err).Retryable())
}

func TestFetchAllHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.FetchAll(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNetwork))
	assert.True(t, IsTimeout(err))
}

func TestSubmitOrderPostsPayload(t *testing.T) {
	var received OrderPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"remote-1"}`)
	})

	placed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	receipt, err := client.SubmitOrder(context.Background(), OrderPayload{
		OrderID: "order-1",
		Items: []OrderItemPayload{
			{Name: "Burger", Price: json.Number("10.00"), Quantity: 2},
			{Name: "Soda", Price: json.Number("5.00"), Quantity: 1, IncludesDrink: true},
		},
		Total:     json.Number("25.00"),
		Timestamp: placed,
	})
	require.NoError(t, err)
	assert.Equal(t, "remote-1", receipt.ID)

	assert.Equal(t, "order-1", received.OrderID)
	require.Len(t, received.Items, 2)
	assert.Equal(t, json.Number("10.00"), received.Items[0].Price)
	assert.Equal(t, json.Number("25.00"), received.Total)
	assert.True(t, placed.Equal(received.Timestamp))
}

func TestSubmitOrderEmptyBodyFallsBackToLocalID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	receipt, err := client.SubmitOrder(context.Background(), OrderPayload{OrderID: "order-9", Total: json.Number("0")})
	require.NoError(t, err)
	assert.Equal(t, "order-9", receipt.ID)
}

func TestSubmitOrderRejectedIsNetworkError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.SubmitOrder(context.Background(), OrderPayload{OrderID: "order-1", Total: json.Number("1")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNetwork))
}
