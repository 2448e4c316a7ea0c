package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/fakeshop"
)

const defaultTokenTTL = 24 * time.Hour

type ctxKeySubject struct{}

// HTTPHandler serves the shop's REST API on top of a fakeshop.Shop.
type HTTPHandler struct {
	shop     *fakeshop.Shop
	secret   []byte
	tokenTTL time.Duration
	log      logrus.FieldLogger
}

type errorResponse struct {
	Error string `json:"error"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type itemsRequest struct {
	Items []domain.ItemQuantity `json:"items"`
}

func NewHTTPHandler(shop *fakeshop.Shop, secret string, log logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{shop: shop, secret: []byte(secret), tokenTTL: defaultTokenTTL, log: log}
}

// Router registers every route. Routes outside the public set require a
// bearer token issued by Login.
func (h *HTTPHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/items", h.ListItems).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/accounts/register", h.Register).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.authenticate)
	api.HandleFunc("/accounts/{id:[0-9]+}", h.GetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}", h.UpdateAccount).Methods(http.MethodPut)
	api.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.ReplaceOrderItems).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/payments", h.CreatePayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/by-order", h.GetPaymentByOrder).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}", h.GetPayment).Methods(http.MethodGet)
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.shop.Items())
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if !decode(w, r, &creds) {
		return
	}
	account, err := h.shop.Authenticate(creds)
	if err != nil {
		h.writeError(w, err)
		return
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   account.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if !decode(w, r, &reg) {
		return
	}
	account, err := h.shop.Register(reg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *HTTPHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	account, err := h.shop.Account(subject(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *HTTPHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var update domain.AccountUpdate
	if !decode(w, r, &update) {
		return
	}
	account, err := h.shop.UpdateAccount(subject(r), id, update)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.shop.CreateOrder(subject(r), req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.shop.ListOrders(subject(r))
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.shop.Order(subject(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) ReplaceOrderItems(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := h.shop.ReplaceItems(subject(r), mux.Vars(r)["id"], req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.shop.CancelOrder(subject(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	payment, created, err := h.shop.CreatePayment(subject(r), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, payment)
}

func (h *HTTPHandler) GetPaymentByOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "orderId is required"})
		return
	}
	payment, err := h.shop.PaymentByOrder(subject(r), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *HTTPHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.shop.Payment(subject(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// authenticate accepts only HS256 tokens signed with the handler's secret
// and stores their subject in the request context.
func (h *HTTPHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Fields(r.Header.Get("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		var claims jwt.RegisteredClaims
		token, err := jwt.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (interface{}, error) {
			return h.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid || claims.Subject == "" {
			h.log.WithError(err).Debug("rejected bearer token")
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySubject{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func subject(r *http.Request) string {
	s, _ := r.Context().Value(ctxKeySubject{}).(string)
	return s
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, fakeshop.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, fakeshop.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, fakeshop.ErrInvalid):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, fakeshop.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, fakeshop.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	default:
		h.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
