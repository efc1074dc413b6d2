package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"receptionist/internal/config"
	"receptionist/internal/database"
	"receptionist/internal/models"
	"receptionist/internal/repository"
	"receptionist/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const dentalYAML = `
business_name: Bright Smiles Dental
business_hours:
  monday: "09:00-17:00"
  tuesday: "09:00-17:00"
  wednesday: "09:00-17:00"
  thursday: "09:00-17:00"
  friday: "09:00-17:00"
  saturday: closed
  sunday: closed
enabled_features: [appointments, cancellations, orders, faq, messages]
features:
  appointments:
    appointment_types:
      - name: Cleaning
        duration: 30
  faq:
    questions:
      - keywords: "parking"
        answer: "Free parking is behind the building."
`

type testEnv struct {
	db      *database.DB
	server  *HTTPServer
	handler http.Handler
	redis   *miniredis.Miniredis
	export  string
}

func newTestEnv(t *testing.T, cfg config.APIConfig, webhookLimit int) *testEnv {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dental.yaml"), []byte(dentalYAML), 0o600))

	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.SetLocation(time.UTC)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	profiles := config.NewProfileDirectory(dir)
	exportDir := filepath.Join(t.TempDir(), "exports")

	srv := NewHTTPServer(&cfg, Dependencies{
		Receptionist:     service.NewReceptionist(profiles, db, nil, time.UTC, &logger),
		Profiles:         profiles,
		Repo:             db,
		Cache:            repository.NewRedisProfileCache(client),
		WebhookRateLimit: webhookLimit,
		ExportDir:        exportDir,
		Failed:           db,
	}, &logger)
	srv.now = func() time.Time { return time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC) }

	return &testEnv{db: db, server: srv, handler: srv.Handler(), redis: mr, export: exportDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func bookingEnvelope(businessID, hhmm string) map[string]any {
	return map[string]any{
		"intent":      "schedule_appointment",
		"business_id": businessID,
		"data": map[string]any{
			"customer_name": "Ann Lee",
			"phone":         "555-0101",
			"date":          "2026-03-16",
			"time":          hhmm,
			"service":       "Cleaning",
		},
	}
}

func TestWebhook_BookAndConflict(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 0)

	rec := env.do(t, http.MethodPost, "/webhook/vapi", bookingEnvelope("dental", "10:00"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "apt_1", body["appointment_id"])

	rec = env.do(t, http.MethodPost, "/webhook/vapi", bookingEnvelope("dental", "10:00"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, models.ActionSuggestAlternatives, body["action"])
	assert.NotEmpty(t, body["alternatives"])
}

func TestWebhook_MetadataBusinessID(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 0)

	rec := env.do(t, http.MethodPost, "/webhook/vapi", map[string]any{
		"intent":   "faq",
		"metadata": map[string]any{"business_id": "dental"},
		"data":     map[string]any{"question": "Where is parking?"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Free parking is behind the building.", body["answer"])
}

func TestWebhook_Errors(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 0)

	t.Run("MissingBusinessID", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/webhook/vapi", map[string]any{"intent": "faq"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "No business_id provided", body["error"])
	})

	t.Run("UnknownBusiness", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/webhook/vapi", map[string]any{"intent": "faq", "business_id": "ghost"}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Config not found for ghost", decodeBody(t, rec)["error"])
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/vapi", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("WrongMethod", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/webhook/vapi", nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("UnknownIntent", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/webhook/vapi", map[string]any{"intent": "dance", "business_id": "dental"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decodeBody(t, rec)["success"])
	})
}

func TestWebhook_StoreFailureHidden(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 0)
	require.NoError(t, env.db.Close())

	rec := env.do(t, http.MethodPost, "/webhook/vapi", bookingEnvelope("dental", "10:00"), nil)
	// The scheduling engine hides store errors behind a callback message.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

type brokenProfiles struct{}

func (brokenProfiles) GetProfile(context.Context, string) (*models.BusinessProfile, error) {
	return nil, errors.New("profile store: dial tcp 10.0.0.7:6379: connection refused")
}

func TestWebhook_InternalErrorHidesCause(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.APIConfig{}
	srv := NewHTTPServer(&cfg, Dependencies{
		Receptionist: service.NewReceptionist(brokenProfiles{}, db, nil, time.UTC, &logger),
		Profiles:     brokenProfiles{},
		Repo:         db,
	}, &logger)

	env := &testEnv{handler: srv.Handler()}
	rec := env.do(t, http.MethodPost, "/webhook/vapi", map[string]any{"intent": "faq", "business_id": "dental"}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "internal error", body["error"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestWebhook_RateLimitPerBusiness(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 2)

	faq := map[string]any{"intent": "faq", "business_id": "dental", "data": map[string]any{"question": "parking"}}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", faq, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", faq, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/webhook/vapi", faq, nil).Code)

	env.redis.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", faq, nil).Code)
}

func TestWebhook_RateLimitFailsOpen(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 1)
	env.redis.Close()

	faq := map[string]any{"intent": "faq", "business_id": "dental", "data": map[string]any{"question": "parking"}}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", faq, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", faq, nil).Code)
}

func TestWebhookTest_Echo(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 0)

	rec := env.do(t, http.MethodPost, "/webhook/vapi/test", map[string]any{"hello": "world"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Received", decodeBody(t, rec)["message"])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 0)

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, "2026-03-16T12:00:00Z", body["timestamp"])

	require.NoError(t, env.db.Close())
	rec = env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "disconnected", decodeBody(t, rec)["database"])
}

func TestBusinessEndpoints(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, 0)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", bookingEnvelope("dental", "09:00"), nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", bookingEnvelope("dental", "11:00"), nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", map[string]any{
		"intent": "place_order", "business_id": "dental",
		"data": map[string]any{"customer_name": "Bo", "phone": "1", "order_items": "floss", "total": "$4.50", "pickup_time": "5pm"},
	}, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/webhook/vapi", map[string]any{
		"intent": "leave_message", "business_id": "dental",
		"data": map[string]any{"caller_name": "Cy", "phone": "2", "message": "call me"},
	}, nil).Code)

	t.Run("Config", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/business/dental/config", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "Bright Smiles Dental", body["business_name"])
		assert.Equal(t, "dental", body["id"])
	})

	t.Run("ConfigNotFound", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/business/ghost/config", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Appointments", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/business/dental/appointments", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var appts []models.Appointment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appts))
		require.Len(t, appts, 2)
		assert.Equal(t, 11, appts[0].StartTime.Hour(), "latest start first")
	})

	t.Run("EmptyListIsArray", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/business/other/appointments", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("Orders", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/business/dental/orders", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var orders []models.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
		require.Len(t, orders, 1)
		assert.InDelta(t, 4.5, orders[0].Total, 0.001)
	})

	t.Run("Messages", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/business/dental/messages", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var msgs []models.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
		require.Len(t, msgs, 1)
		assert.Equal(t, models.PriorityNormal, msgs[0].Priority)
	})

	t.Run("Export", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/business/dental/appointments/export", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "appointments_dental_")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Appointments")
		require.NoError(t, err)
		assert.Len(t, rows, 4) // title, header, two appointments

		saved, err := filepath.Glob(filepath.Join(env.export, "*.xlsx"))
		require.NoError(t, err)
		assert.Len(t, saved, 1)
	})

	t.Run("FailedNotifications", func(t *testing.T) {
		ctx := context.Background()
		lastErr := "telegram: chat not found"
		require.NoError(t, env.db.CreateNotification(ctx, &models.Notification{
			Kind: "order_created", BusinessID: "dental", Channel: models.ChannelTelegram,
			Text: "new order", Status: models.NotificationFailed, LastError: &lastErr,
		}))
		require.NoError(t, env.db.CreateNotification(ctx, &models.Notification{
			Kind: "order_created", BusinessID: "pizza", Channel: models.ChannelTelegram,
			Text: "other shop", Status: models.NotificationFailed, LastError: &lastErr,
		}))

		rec := env.do(t, http.MethodGet, "/business/dental/notifications/failed", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var failed []models.Notification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
		require.Len(t, failed, 1)
		assert.Equal(t, "new order", failed[0].Text)

		rec = env.do(t, http.MethodGet, "/business/ghost/notifications/failed", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("ExportUnknownBusiness", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/business/ghost/appointments/export", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHTTPAuth(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), 0)

	reader := map[string]string{"x-api-key": "reader", "x-api-extra": "reader-extra"}
	ops := map[string]string{"x-api-key": "ops", "x-api-extra": "ops-extra"}

	t.Run("WebhookIsOpen", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/webhook/vapi", map[string]any{"intent": "faq", "business_id": "dental"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("HealthIsOpen", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil, nil).Code)
	})

	t.Run("MissingKey", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/business/dental/config", nil, nil).Code)
	})

	t.Run("WrongExtra", func(t *testing.T) {
		headers := map[string]string{"x-api-key": "reader", "x-api-extra": "nope"}
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/business/dental/config", nil, headers).Code)
	})

	t.Run("ReaderCanRead", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/business/dental/appointments", nil, reader).Code)
	})

	t.Run("ReaderCanListFailedNotifications", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/business/dental/notifications/failed", nil, reader).Code)
	})

	t.Run("ReaderCannotExport", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/business/dental/appointments/export", nil, reader).Code)
	})

	t.Run("OpsCanExport", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/business/dental/appointments/export", nil, ops).Code)
	})
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := testAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
	env := newTestEnv(t, cfg, 0)

	reader := map[string]string{"x-api-key": "reader", "x-api-extra": "reader-extra"}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/business/dental/config", nil, reader).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodGet, "/business/dental/config", nil, reader).Code)
}
