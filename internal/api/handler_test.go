package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"maritime-marketplace/internal/broker/brokertest"
	"maritime-marketplace/internal/redisclient"
	"maritime-marketplace/internal/service"
	"maritime-marketplace/internal/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	mem    *storetest.Memory
	pub    *brokertest.Publisher
}

func setupTestServer(t *testing.T, checks ...ReadinessCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redisclient.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { rdb.Close() })

	mem := storetest.NewMemory(storetest.Products()...)
	pub := &brokertest.Publisher{}

	catalog := service.NewCatalogService(mem)
	carts := service.NewCartService(catalog, rdb, time.Hour, 5*time.Second)
	handler := NewHandler(Services{
		Catalog:  catalog,
		Carts:    carts,
		Checkout: service.NewCheckoutService(carts, mem, mem, rdb, pub, 30*time.Second, time.Hour),
		Orders:   service.NewOrderService(mem, mem),
		Alerts:   service.NewAlertService(mem),
		Payments: service.NewPaymentService(mem, service.NewMockCardProcessor(1), pub),
	}, checks...)

	router := gin.New()
	handler.SetupRoutes(router)
	return &testServer{router: router, mem: mem, pub: pub}
}

func (s *testServer) do(t *testing.T, method, path string, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func checkoutBody(method string) map[string]interface{} {
	body := map[string]interface{}{
		"paymentMethod": method,
		"name":          "Ada Mariner",
		"email":         "ada@example.com",
		"address":       "1 Harbour Way",
		"city":          "Portsmouth",
		"state":         "Hampshire",
		"zipCode":       "PO1 2AB",
		"country":       "UK",
	}
	if method == "credit_card" {
		body["cardNumber"] = "1234567890123456"
		body["expiryDate"] = "12/29"
		body["cvv"] = "123"
		body["cardholderName"] = "Ada Mariner"
	}
	return body
}

func TestHealthAndReady(t *testing.T) {
	s := setupTestServer(t, ReadinessCheck{Name: "db", Ping: func(ctx context.Context) error { return nil }})

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode(t, w)["status"])
}

func TestReadyReportsFailedDependency(t *testing.T) {
	s := setupTestServer(t, ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error { return errors.New("connection refused") }})

	w := s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	failed := decode(t, w)["failed"].(map[string]interface{})
	assert.Equal(t, "connection refused", failed["redis"])
}

func TestListProducts(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/products?type=VTS", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])

	w = s.do(t, http.MethodGet, "/api/v1/products?type=SUBMARINE", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/products?page=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/products/3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Compliance Report", decode(t, w)["name"])

	w = s.do(t, http.MethodGet, "/api/v1/products/99", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartRequiresUser(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/cart", "abc", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartEndpoints(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/cart", "5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Empty(t, body["items"])
	assert.Equal(t, "$0.00", body["formattedTotal"])

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "5", map[string]interface{}{"productId": 1, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	itemID := items[0].(map[string]interface{})["itemId"].(string)
	assert.NotEmpty(t, itemID)
	assert.Equal(t, "500.00", body["totalPrice"])

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "5", map[string]interface{}{
		"productId":            2,
		"configuredPrice":      "180.00",
		"configurationDetails": map[string]interface{}{"alertType": "AREA"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "$680.00", decode(t, w)["formattedTotal"])

	w = s.do(t, http.MethodPatch, "/api/v1/cart/items/"+itemID, "5", map[string]interface{}{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["itemCount"])

	w = s.do(t, http.MethodPatch, "/api/v1/cart/items/"+itemID, "5", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/cart/items/"+itemID, "5", map[string]interface{}{"quantity": 1000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items/"+itemID+"/decrement", "5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = s.do(t, http.MethodDelete, "/api/v1/cart", "5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["itemCount"])
}

func TestAddCartItemValidation(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/cart/items", "5", map[string]interface{}{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "5", map[string]interface{}{"productId": 404})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "5", map[string]interface{}{"productId": 1, "configuredCreditCost": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "5", map[string]interface{}{"productId": 1, "quantity": 1000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "5", map[string]interface{}{
		"productId":            1,
		"quantity":             2,
		"configuredCreditCost": int64(4611686018427387904),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/cart", "5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["items"])
}

func TestCheckoutFlow(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/checkout", "8", checkoutBody("credit_card"))
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty cart")

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "8", map[string]interface{}{"productId": 3})
	require.Equal(t, http.StatusOK, w.Code)

	invalid := checkoutBody("credit_card")
	invalid["cardNumber"] = "12345"
	w = s.do(t, http.MethodPost, "/api/v1/checkout", "8", invalid)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errs := decode(t, w)["errors"].(map[string]interface{})
	assert.Equal(t, "Card number must be 16 digits", errs["cardNumber"])

	w = s.do(t, http.MethodPost, "/api/v1/checkout", "8", checkoutBody("credit_card"))
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	orderID := body["orderId"].(float64)
	assert.NotZero(t, orderID)
	assert.Equal(t, "PENDING", body["status"])
	sum := body["summary"].(map[string]interface{})
	assert.Equal(t, "$500.00", sum["formattedTotal"])
	assert.Equal(t, []interface{}{"view_reports"}, sum["nextActions"])
	assert.Len(t, s.pub.Placed, 1)

	w = s.do(t, http.MethodGet, "/api/v1/checkout/status", "8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCEEDED", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/v1/cart", "8", nil)
	assert.Equal(t, float64(0), decode(t, w)["itemCount"])

	w = s.do(t, http.MethodGet, "/api/v1/orders", "8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 1)

	w = s.do(t, http.MethodGet, "/api/v1/orders/1", "9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/orders/abc", "8", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutIdempotencyHeader(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/cart/items", "8", map[string]interface{}{"productId": 1})
	require.Equal(t, http.StatusOK, w.Code)

	body := checkoutBody("credit_card")
	body["idempotencyKey"] = "abc-123"

	w = s.do(t, http.MethodPost, "/api/v1/checkout", "8", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/checkout", "8", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["duplicate"])
	assert.Equal(t, 1, s.mem.OrderCount())
}

func TestCheckoutWithCredits(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/cart/items", "8", map[string]interface{}{"productId": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/checkout", "8", checkoutBody("credits"))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/credits", "8", map[string]interface{}{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/credits", "8", map[string]interface{}{"amount": 25})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(25), decode(t, w)["balance"])

	w = s.do(t, http.MethodPost, "/api/v1/checkout", "8", checkoutBody("credits"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/credits", "8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(25), decode(t, w)["balance"])
}

func TestAlertEndpoints(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/alerts", "3", map[string]interface{}{"severity": "WARNING", "title": "AIS gap", "vesselId": "IMO9395044"})
	require.Equal(t, http.StatusCreated, w.Code)
	alertID := decode(t, w)["id"].(float64)

	w = s.do(t, http.MethodPost, "/api/v1/alerts", "3", map[string]interface{}{"severity": "PANIC", "title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/alerts", "3", map[string]interface{}{"severity": "INFO", "title": "Report ready"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/alerts?unread=true", "3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["unread"])

	w = s.do(t, http.MethodPatch, "/api/v1/alerts/"+formatID(alertID)+"/read", "4", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/alerts/"+formatID(alertID)+"/read", "3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/alerts/read-all", "3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["updated"])

	w = s.do(t, http.MethodGet, "/api/v1/alerts?unread=true", "3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["alerts"])
}

func formatID(id float64) string {
	b, _ := json.Marshal(int64(id))
	return string(b)
}
