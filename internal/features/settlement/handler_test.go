package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/internal/testutil"
	"github.com/mo-amir99/course-market-go/pkg/cache"
	"github.com/mo-amir99/course-market-go/pkg/stripe"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

const webhookSecret = "whsec_test"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(f fixture, studentID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)

	verifier := stripe.NewClient("", webhookSecret, "", nil)
	handler := NewHandler(f.db, testutil.Logger(), f.engine, verifier, cache.NewMemoryCache())

	asStudent := []gin.HandlerFunc{func(c *gin.Context) {
		c.Set("user", &middleware.User{ID: studentID, UserType: types.UserTypeStudent, Active: true})
		c.Next()
	}}

	router := gin.New()
	RegisterRoutes(router.Group("/api"), handler, asStudent)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func sendWebhook(router *gin.Engine, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func succeededEvent(eventID, intentRef string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":"payment_intent.succeeded","data":{"object":{"id":%q,"status":"succeeded"}}}`, eventID, intentRef))
}

func TestWebhookThenConfirmReturnSamePayload(t *testing.T) {
	f := newFixture(t)
	studentID := uuid.New()
	router := newRouter(f, studentID)

	rec, env := doJSON(t, router, "/api/payments/intents", gin.H{"courseId": f.course.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var intent Intent
	require.NoError(t, json.Unmarshal(env.Data, &intent))
	f.gateway.succeed(intent.IntentRef)

	payload := succeededEvent("evt_1", intent.IntentRef)
	webhook := sendWebhook(router, payload, stripe.SignatureHeader(payload, webhookSecret, time.Now().Unix()))
	require.Equal(t, http.StatusOK, webhook.Code, webhook.Body.String())

	var event WebhookEvent
	require.NoError(t, f.db.Where("event_id = ?", "evt_1").First(&event).Error)
	assert.True(t, event.Success)

	stored, err := f.engine.Finalize(context.Background(), intent.IntentRef, SourceWebhook)
	require.NoError(t, err)

	rec, env = doJSON(t, router, "/api/payments/confirm", gin.H{"paymentIntentId": intent.IntentRef})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var confirmed Result
	require.NoError(t, json.Unmarshal(env.Data, &confirmed))
	assert.Equal(t, stored.EnrollmentID, confirmed.EnrollmentID)
	assert.Equal(t, stored.AdminShare, confirmed.AdminShare)
	assert.Equal(t, stored.LecturerShare, confirmed.LecturerShare)
	assert.True(t, stored.SettledAt.Equal(confirmed.SettledAt))

	assert.Len(t, f.notifier.kinds(), 4)
}

func TestWebhookReplayIsIgnored(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, uuid.New())

	intent, err := f.engine.CreateIntent(context.Background(), uuid.New(), f.course.ID)
	require.NoError(t, err)
	f.gateway.succeed(intent.IntentRef)

	payload := succeededEvent("evt_replayed", intent.IntentRef)
	header := stripe.SignatureHeader(payload, webhookSecret, time.Now().Unix())

	require.Equal(t, http.StatusOK, sendWebhook(router, payload, header).Code)
	lookups := f.gateway.lookups

	second := sendWebhook(router, payload, header)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"duplicate":true`)
	assert.Equal(t, lookups, f.gateway.lookups)

	var count int64
	require.NoError(t, f.db.Model(&WebhookEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, uuid.New())

	payload := succeededEvent("evt_forged", "pi_1")
	rec := sendWebhook(router, payload, stripe.SignatureHeader(payload, "wrong", time.Now().Unix()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, f.db.Model(&WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookGatewayOutageAsksForRetry(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, uuid.New())

	intent, err := f.engine.CreateIntent(context.Background(), uuid.New(), f.course.ID)
	require.NoError(t, err)
	f.gateway.succeed(intent.IntentRef)
	f.gateway.getErr = fmt.Errorf("timeout")

	payload := succeededEvent("evt_retry", intent.IntentRef)
	header := stripe.SignatureHeader(payload, webhookSecret, time.Now().Unix())
	assert.Equal(t, http.StatusServiceUnavailable, sendWebhook(router, payload, header).Code)

	f.gateway.getErr = nil
	assert.Equal(t, http.StatusOK, sendWebhook(router, payload, header).Code)
	assert.Len(t, f.notifier.kinds(), 4)
}

func TestWebhookStoreFailureAsksForRetry(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, uuid.New())

	intent, err := f.engine.CreateIntent(context.Background(), uuid.New(), f.course.ID)
	require.NoError(t, err)
	f.gateway.succeed(intent.IntentRef)

	failWrites := true
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_enrollment_writes", func(tx *gorm.DB) {
		if failWrites && tx.Statement.Table == "enrollments" {
			_ = tx.AddError(errors.New("connection reset by peer"))
		}
	}))

	payload := succeededEvent("evt_store_down", intent.IntentRef)
	header := stripe.SignatureHeader(payload, webhookSecret, time.Now().Unix())

	rec := sendWebhook(router, payload, header)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")

	row, err := enrollment.GetByIntentRef(f.db, intent.IntentRef)
	require.NoError(t, err)
	assert.False(t, row.Settled())
	assert.Empty(t, f.notifier.kinds())

	failWrites = false
	rec = sendWebhook(router, payload, header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	row, err = enrollment.GetByIntentRef(f.db, intent.IntentRef)
	require.NoError(t, err)
	assert.True(t, row.Settled())
	assert.Len(t, f.notifier.kinds(), 4)
}

func TestWebhookMalformedObjectIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, uuid.New())

	payload := []byte(`{"id":"evt_no_object_id","type":"payment_intent.succeeded","data":{"object":{"status":"succeeded"}}}`)
	rec := sendWebhook(router, payload, stripe.SignatureHeader(payload, webhookSecret, time.Now().Unix()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":false`)

	var event WebhookEvent
	require.NoError(t, f.db.Where("event_id = ?", "evt_no_object_id").First(&event).Error)
	assert.False(t, event.Success)
}

func TestConfirmRejectsOtherStudentsIntent(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, uuid.New())

	intent, err := f.engine.CreateIntent(context.Background(), uuid.New(), f.course.ID)
	require.NoError(t, err)
	f.gateway.succeed(intent.IntentRef)

	rec, _ := doJSON(t, router, "/api/payments/confirm", gin.H{"paymentIntentId": intent.IntentRef})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.notifier.kinds())
}
