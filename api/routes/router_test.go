package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/dropship-backend/api/controllers/webhooks"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

const routerTestSecret = "router-test-secret"

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubOrdersStore struct{}

func (stubOrdersStore) GetOrderWithDetails(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

type stubFailedLister struct{}

func (stubFailedLister) ListFailedRecords(ctx context.Context, limit, offset int) ([]models.FulfillmentRecord, int64, error) {
	return nil, 0, nil
}

type stubProcessor struct{}

func (stubProcessor) ProcessRecord(ctx context.Context, recordID uuid.UUID) (fulfillment.SupplierOutcome, error) {
	return fulfillment.SupplierOutcome{RecordID: recordID}, nil
}

type stubSweeper struct{}

func (stubSweeper) RetryFailed(ctx context.Context) (*fulfillment.RetryResult, error) {
	return &fulfillment.RetryResult{}, nil
}

type stubReconciler struct{}

func (stubReconciler) PollActiveFulfillments(ctx context.Context) (*fulfillment.ReconcileResult, error) {
	return &fulfillment.ReconcileResult{}, nil
}

type stubPaymentStore struct{}

func (stubPaymentStore) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, ref string, paidAt time.Time) (bool, error) {
	return true, nil
}

type stubPublisher struct{}

func (stubPublisher) PublishOrderPaid(ctx context.Context, orderID uuid.UUID, ref string) error {
	return nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: routerTestSecret, Issuer: "dropship"},
	}

	orders, err := controllers.NewOrdersController(stubOrdersStore{}, logg)
	if err != nil {
		t.Fatalf("orders controller: %v", err)
	}
	admin, err := controllers.NewAdminFulfillmentsController(controllers.AdminFulfillmentsControllerParams{
		Store:      stubFailedLister{},
		Processor:  stubProcessor{},
		Sweeper:    stubSweeper{},
		Reconciler: stubReconciler{},
		Logger:     logg,
	})
	if err != nil {
		t.Fatalf("admin controller: %v", err)
	}
	payments, err := webhookcontrollers.NewPaymentsController(webhookcontrollers.PaymentsControllerParams{
		Store:     stubPaymentStore{},
		Publisher: stubPublisher{},
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("payments controller: %v", err)
	}

	return NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logg,
		Pingers:  map[string]controllers.Pinger{"db": stubPinger{}},
		Orders:   orders,
		Admin:    admin,
		Payments: payments,
	})
}

func bearerToken(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  "user-1",
		"role": role,
		"iss":  "dropship",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(routerTestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + token
}

func TestRouterHealthIsPublic(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouterOrdersRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearerToken(t, "customer"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("authed status = %d, want 404 from stub store", rec.Code)
	}
}

func TestRouterAdminRequiresAdminRole(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/fulfillments/failed", nil)
	req.Header.Set("Authorization", bearerToken(t, "customer"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/fulfillments/failed", nil)
	req.Header.Set("Authorization", bearerToken(t, "admin"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", rec.Code)
	}
}

func TestRouterWebhookIsUnauthenticated(t *testing.T) {
	router := newTestRouter(t)

	payload := `{"order_id":"` + uuid.NewString() + `","payment_reference":"pay_1","status":"succeeded"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
