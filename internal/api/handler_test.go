package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"order-console/internal/models"
	"order-console/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubDashboard struct {
	views    models.Views
	ready    bool
	selected *models.Order
}

func (s *stubDashboard) Views() models.Views { return s.views }
func (s *stubDashboard) Ready() bool         { return s.ready }

func (s *stubDashboard) Selected() (models.Order, bool) {
	if s.selected == nil {
		return models.Order{}, false
	}
	return *s.selected, true
}

func (s *stubDashboard) SelectByID(id string) (models.Order, bool) {
	for _, o := range s.views.Orders {
		if o.ID == id {
			s.selected = &o
			return o, true
		}
	}
	return models.Order{}, false
}

func (s *stubDashboard) Clear() { s.selected = nil }

type stubStatus struct {
	err   error
	calls []string
}

func (s *stubStatus) Transition(_ context.Context, orderID, newStatus string) error {
	s.calls = append(s.calls, orderID+"="+newStatus)
	return s.err
}

type stubCatalog struct {
	createErr error
	removeErr error
	key       string
}

func (s *stubCatalog) Create(_ context.Context, _ models.ProductDraft, key string) (string, error) {
	s.key = key
	if s.createErr != nil {
		return "", s.createErr
	}
	return "p1", nil
}

func (s *stubCatalog) Remove(context.Context, string) error { return s.removeErr }

func token(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func setup(t *testing.T, d *stubDashboard, st *stubStatus, cat *stubCatalog) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(d, st, cat, NewAuthenticator(testSecret, "")).SetupRoutes(router)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if _, ok := headers["Authorization"]; !ok {
		req.Header.Set("Authorization", "Bearer "+token(t, testSecret, time.Now().Add(time.Hour)))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleViews() models.Views {
	o := models.Order{ID: "a", UserID: "u1", Status: models.OrderStatusPending, TotalAmount: decimal.NewFromInt(100)}
	return models.Views{
		Orders:      []models.Order{o},
		Customers:   []models.CustomerSummary{{UserID: "u1"}},
		Stats:       models.DashboardStats{OrderCount: 1, PendingCount: 1, TotalSales: decimal.NewFromInt(100)},
		LatestOrder: &o,
	}
}

func TestAuthRequired(t *testing.T) {
	router := setup(t, &stubDashboard{}, &stubStatus{}, &stubCatalog{})

	w := do(t, router, http.MethodGet, "/api/v1/dashboard", "", map[string]string{"Authorization": ""})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/dashboard", "", map[string]string{"Authorization": "Bearer " + token(t, "other", time.Now().Add(time.Hour))})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/dashboard", "", map[string]string{"Authorization": "Bearer " + token(t, testSecret, time.Now().Add(-time.Minute))})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetDashboard(t *testing.T) {
	d := &stubDashboard{views: sampleViews()}
	router := setup(t, d, &stubStatus{}, &stubCatalog{})

	w := do(t, router, http.MethodGet, "/api/v1/dashboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["orders"], 1)
	assert.Len(t, body["customers"], 1)
	assert.Nil(t, body["selectedOrder"])
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["pendingCount"])
	assert.Equal(t, "100", stats["totalSales"])
	first := body["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, "100", first["totalAmount"])
}

func TestReadiness(t *testing.T) {
	d := &stubDashboard{}
	router := setup(t, d, &stubStatus{}, &stubCatalog{})

	w := do(t, router, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	d.ready = true
	w = do(t, router, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	st := &stubStatus{}
	router := setup(t, &stubDashboard{}, st, &stubCatalog{})

	w := do(t, router, http.MethodPut, "/api/v1/orders/a/status", `{"status":"Delivered"}`, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"a=Delivered"}, st.calls)

	w = do(t, router, http.MethodPut, "/api/v1/orders/a/status", `{"status":"outfordelivery"}`, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"order_id":"a","status":"Out for Delivery"}`, w.Body.String())

	w = do(t, router, http.MethodPut, "/api/v1/orders/a/status", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	st.err = &service.ValidationError{Field: "status", Reason: "unknown"}
	w = do(t, router, http.MethodPut, "/api/v1/orders/a/status", `{"status":"Lost"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	st.err = errors.Join(service.ErrStoreUnavailable, errors.New("not found"))
	w = do(t, router, http.MethodPut, "/api/v1/orders/missing/status", `{"status":"Delivered"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateProduct(t *testing.T) {
	cat := &stubCatalog{}
	router := setup(t, &stubDashboard{}, &stubStatus{}, cat)

	w := do(t, router, http.MethodPost, "/api/v1/products",
		`{"name":"Barfi","price":10,"category":"Sweets","image":"x"}`,
		map[string]string{"Idempotency-Key": "k1"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"p1"}`, w.Body.String())
	assert.Equal(t, "k1", cat.key)

	cat.createErr = &service.ValidationError{Field: "name", Reason: "must not be empty"}
	w = do(t, router, http.MethodPost, "/api/v1/products", `{"name":"","price":10,"category":"Sweets","image":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"name"`)
}

func TestRemoveProduct(t *testing.T) {
	cat := &stubCatalog{}
	router := setup(t, &stubDashboard{}, &stubStatus{}, cat)

	w := do(t, router, http.MethodDelete, "/api/v1/products/p1", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	cat.removeErr = errors.New("boom")
	w = do(t, router, http.MethodDelete, "/api/v1/products/p1", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSelection(t *testing.T) {
	d := &stubDashboard{views: sampleViews()}
	router := setup(t, d, &stubStatus{}, &stubCatalog{})

	w := do(t, router, http.MethodPost, "/api/v1/selection", `{"orderId":"zzz"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/selection", `{"orderId":"a"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, d.selected)

	w = do(t, router, http.MethodGet, "/api/v1/dashboard", "", nil)
	assert.Contains(t, w.Body.String(), `"selectedOrder":{"id":"a"`)

	w = do(t, router, http.MethodDelete, "/api/v1/selection", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, d.selected)
}

func TestPrincipal(t *testing.T) {
	a := NewAuthenticator(testSecret, "")
	sub, err := a.Principal(token(t, testSecret, time.Now().Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, "admin-1", sub)

	_, err = NewAuthenticator(testSecret, "auth.example").Principal(token(t, testSecret, time.Now().Add(time.Minute)))
	assert.Error(t, err, "issuer mismatch")
}
