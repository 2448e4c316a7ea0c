package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-console/internal/core/domain"
)

type staticToken string

func (s staticToken) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

type recordingServer struct {
	*httptest.Server
	router *mux.Router
	hits   atomic.Int32
	auth   atomic.Value
}

func newRecordingServer(t *testing.T) *recordingServer {
	rs := &recordingServer{router: mux.NewRouter()}
	rs.auth.Store("")
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		rs.auth.Store(r.Header.Get("Authorization"))
		rs.router.ServeHTTP(w, r)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func newTestClient(base string, token string) *Client {
	log := logrus.New()
	log.Out = io.Discard
	return NewClient(base, staticToken(token), WithLogger(log))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestGetOrder_AttachesBearerAndDecodes(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(requestIDHeader))
		io.WriteString(w, `{"id":"`+mux.Vars(r)["id"]+`","status":"CREATED","totalAmount":25.00,
			"items":[{"itemId":"i1","upc":"001","name":"Pen","unitPrice":10.00,"quantity":2},
			         {"itemId":"i2","upc":"002","name":"Ink","unitPrice":5.00,"quantity":1}]}`)
	}).Methods(http.MethodGet)

	client := newTestClient(srv.URL, "tok-1")
	order, err := client.GetOrder(context.Background(), "o1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", srv.auth.Load())
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 3, order.TotalQuantity())
}

func TestAuthRequired_NoCredential(t *testing.T) {
	srv := newRecordingServer(t)
	client := newTestClient(srv.URL, "")

	_, err := client.ListOrders(context.Background())

	assert.True(t, domain.IsKind(err, domain.FailureUnauthorized))
	assert.Equal(t, "must sign in", domain.DisplayMessage(err))
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestListItems_NoAuthNeeded(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/items", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"i1","upc":"001","name":"Pen","unitPrice":"10.00","availableUnits":4}]`)
	})

	items, err := newTestClient(srv.URL, "").ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "", srv.auth.Load())
	assert.Equal(t, "10.00", items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, 4, items[0].AvailableUnits)
}

func TestCreateOrder_EmptyItemsRejectedLocally(t *testing.T) {
	srv := newRecordingServer(t)
	client := newTestClient(srv.URL, "tok")

	_, err := client.CreateOrder(context.Background(), nil)
	assert.True(t, domain.IsKind(err, domain.FailureValidation))

	_, err = client.ReplaceOrderItems(context.Background(), "o1", []domain.ItemQuantity{{UPC: "001", Quantity: 0}})
	assert.True(t, domain.IsKind(err, domain.FailureValidation))

	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestReplaceOrderItems_ValidationFailureCarriesDiagnostic(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Only orders in CREATED status can be updated"})
	}).Methods(http.MethodPut)

	_, err := newTestClient(srv.URL, "tok").ReplaceOrderItems(context.Background(), "o1",
		[]domain.ItemQuantity{{UPC: "001", Quantity: 1}})

	f := domain.AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, domain.FailureValidation, f.Kind)
	assert.Equal(t, http.StatusConflict, f.Status)
	assert.Equal(t, "Only orders in CREATED status can be updated", domain.DisplayMessage(err))
}

func TestCancelOrder_NoContent(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/orders/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)

	order, err := newTestClient(srv.URL, "tok").CancelOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "", order.ID)
}

func TestGetPaymentByOrder_NotFoundMeansNoPayment(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/payments/by-order", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("orderId") == "paid" {
			io.WriteString(w, `{"id":"p1","orderId":"paid","status":"SUCCESS","amount":25}`)
			return
		}
		http.Error(w, "no payment", http.StatusNotFound)
	})
	client := newTestClient(srv.URL, "tok")

	payment, err := client.GetPaymentByOrder(context.Background(), "o1")
	assert.NoError(t, err)
	assert.Nil(t, payment)

	payment, err = client.GetPaymentByOrder(context.Background(), "paid")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
}

func TestGetPayment_NotFoundIsStillAnError(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/payments/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	})

	_, err := newTestClient(srv.URL, "tok").GetPayment(context.Background(), "p9")
	assert.True(t, domain.IsKind(err, domain.FailureNotFound))
}

func TestCreatePayment_SendsNumericAmount(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, 25.5, raw["amount"])
		assert.Equal(t, "o1", raw["orderId"])
		assert.Equal(t, "key-1", raw["idempotencyKey"])
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": "p1", "orderId": "o1", "status": "SUCCESS", "amount": 25.5})
	}).Methods(http.MethodPost)

	payment, err := newTestClient(srv.URL, "tok").CreatePayment(context.Background(), domain.PaymentRequest{
		OrderID: "o1", Amount: decimal.RequireFromString("25.50"), IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", payment.ID)
}

func TestCreatePayment_NonPositiveAmountRejectedLocally(t *testing.T) {
	srv := newRecordingServer(t)

	_, err := newTestClient(srv.URL, "tok").CreatePayment(context.Background(), domain.PaymentRequest{
		OrderID: "o1", Amount: decimal.Zero, IdempotencyKey: "key-1",
	})
	assert.True(t, domain.IsKind(err, domain.FailureValidation))
	assert.Equal(t, int32(0), srv.hits.Load())
}

func TestServerFailureAndTransportFailure(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error", "message": "db down"})
	})

	_, err := newTestClient(srv.URL, "tok").ListOrders(context.Background())
	assert.True(t, domain.IsKind(err, domain.FailureServer))
	assert.Equal(t, "something went wrong: db down", domain.DisplayMessage(err))

	srv.Close()
	_, err = newTestClient(srv.URL, "tok").ListOrders(context.Background())
	assert.True(t, domain.IsKind(err, domain.FailureTransport))
}

func TestUnauthorizedStatus(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := newTestClient(srv.URL, "expired").ListOrders(context.Background())
	f := domain.AsFailure(err)
	assert.Equal(t, domain.FailureUnauthorized, f.Kind)
	assert.Equal(t, "Unauthorized", f.Message)
}

func TestLogin(t *testing.T) {
	srv := newRecordingServer(t)
	srv.router.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds domain.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "jwt-token"})
	}).Methods(http.MethodPost)
	client := newTestClient(srv.URL, "")

	token, err := client.Login(context.Background(), domain.Credentials{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)

	_, err = client.Login(context.Background(), domain.Credentials{Email: "a@b.c", Password: "nope"})
	assert.True(t, domain.IsKind(err, domain.FailureUnauthorized))
}
