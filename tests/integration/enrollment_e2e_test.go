package integration_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-activities-api/internal/catalog"
	"github.com/noah-isme/gema-activities-api/internal/config"
	"github.com/noah-isme/gema-activities-api/internal/database"
	"github.com/noah-isme/gema-activities-api/internal/dto"
	"github.com/noah-isme/gema-activities-api/internal/handler"
	"github.com/noah-isme/gema-activities-api/internal/middleware"
	"github.com/noah-isme/gema-activities-api/internal/models"
	"github.com/noah-isme/gema-activities-api/internal/registry"
	"github.com/noah-isme/gema-activities-api/internal/repository"
	"github.com/noah-isme/gema-activities-api/internal/router"
	"github.com/noah-isme/gema-activities-api/internal/service"
)

type testEnv struct {
	app   *fiber.App
	redis *redis.Client
}

func setupEnrollmentApp(t *testing.T, rateLimit int) testEnv {
	t.Helper()

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	loader, err := catalog.NewLoader(validate)
	require.NoError(t, err)
	doc, err := loader.Load("")
	require.NoError(t, err)
	reg, err := catalog.Build(doc)
	require.NoError(t, err)

	db, err := database.Connect("sqlite://" + filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.EnrollmentLog{}))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>activities</html>"), 0o600))

	cfg := config.Config{
		AppName:       "GEMA Activities API",
		AppEnv:        "test",
		StaticDir:     staticDir,
		EventsChannel: "gema:activities",
	}

	publisher := service.NewEventPublisher(redisClient, nil, cfg.EventsChannel, logger)
	svc := service.NewEnrollmentService(reg, repository.NewEnrollmentLogRepository(db), publisher, validate, service.EnrollmentServiceOptions{}, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		Enrollments:          svc,
		ActivityHandler:      handler.NewActivityHandler(svc, logger),
		EnrollmentLogHandler: handler.NewEnrollmentLogHandler(svc, logger),
		RateLimiter:          middleware.RateLimit("enrollment-e2e", rateLimit, time.Minute),
	})

	return testEnv{app: app, redis: redisClient}
}

func send(t *testing.T, app *fiber.App, method, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestEnrollmentLifecycle(t *testing.T) {
	env := setupEnrollmentApp(t, 100)

	sub := env.redis.Subscribe(context.Background(), "gema:activities:enrollments")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	resp, body := send(t, env.app, http.MethodGet, "/activities")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var activities map[string]registry.ActivityView
	require.NoError(t, json.Unmarshal(body, &activities))
	require.Len(t, activities, 9)
	require.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu"}, activities["Chess Club"].Participants)

	resp, _ = send(t, env.app, http.MethodPost, "/activities/Chess%20Club/signup?email=newbie@mergington.edu")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)
	var event dto.EnrollmentEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, "Chess Club", event.Activity)
	require.Equal(t, "newbie@mergington.edu", event.Email)
	require.Equal(t, resp.Header.Get("X-Correlation-ID"), event.CorrelationID)

	resp, body = send(t, env.app, http.MethodGet, "/activities")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &activities))
	require.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu", "newbie@mergington.edu"}, activities["Chess Club"].Participants)

	resp, _ = send(t, env.app, http.MethodPost, "/activities/Chess%20Club/unregister?email=michael@mergington.edu")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = send(t, env.app, http.MethodGet, "/api/v1/enrollments/logs?activity=Chess%20Club")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "GEMA Activities API", resp.Header.Get("X-Application"))
	var logs struct {
		Data dto.EnrollmentLogListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs.Data.Items, 2)
	require.Equal(t, "withdraw", logs.Data.Items[0].Action)
	require.Equal(t, "michael@mergington.edu", logs.Data.Items[0].Email)
	require.Equal(t, 2, logs.Data.Items[0].Participants)

	resp, body = send(t, env.app, http.MethodGet, "/metrics")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "enrollment_operations_total")
	require.Contains(t, string(body), `activity_participants{activity="Chess Club"} 2`)
}

func TestEnrollmentErrorsThroughRouter(t *testing.T) {
	env := setupEnrollmentApp(t, 100)

	resp, body := send(t, env.app, http.MethodPost, "/activities/Underwater%20Basket%20Weaving/signup?email=a@mergington.edu")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Contains(t, string(body), "not found")

	resp, body = send(t, env.app, http.MethodPost, "/activities/Chess%20Club/signup?email=daniel@mergington.edu")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "already signed up")

	resp, body = send(t, env.app, http.MethodPost, "/activities/Chess%20Club/unregister?email=ghost@mergington.edu")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "not registered")

	resp, body = send(t, env.app, http.MethodGet, "/api/v1/enrollments/logs")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var logs struct {
		Data dto.EnrollmentLogListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Empty(t, logs.Data.Items)
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	env := setupEnrollmentApp(t, 2)

	for i := 0; i < 5; i++ {
		resp, _ := send(t, env.app, http.MethodGet, "/activities")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, _ := send(t, env.app, http.MethodPost, "/activities/Gym%20Class/signup?email=one@mergington.edu")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = send(t, env.app, http.MethodPost, "/activities/Gym%20Class/signup?email=two@mergington.edu")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = send(t, env.app, http.MethodPost, "/activities/Gym%20Class/signup?email=three@mergington.edu")
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestRootRedirectsToStaticIndex(t *testing.T) {
	env := setupEnrollmentApp(t, 100)

	resp, _ := send(t, env.app, http.MethodGet, "/")
	require.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, "/static/index.html", resp.Header.Get("Location"))

	resp, body := send(t, env.app, http.MethodGet, "/static/index.html")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "activities")
}

func TestKeepAliveSignupsKeepEachParticipant(t *testing.T) {
	env := setupEnrollmentApp(t, 100)

	baseURL, shutdown := startFiberServer(t, env.app)
	defer shutdown()

	client := &http.Client{
		Timeout:   3 * time.Second,
		Transport: &http.Transport{MaxConnsPerHost: 1, MaxIdleConnsPerHost: 1},
	}
	defer client.CloseIdleConnections()

	do := func(method, target string) []byte {
		t.Helper()
		req, err := http.NewRequest(method, baseURL+target, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		return body
	}

	do(http.MethodPost, "/activities/Gym%20Class/signup?email=aaa@mergington.edu")
	do(http.MethodPost, "/activities/Art%20Studio/signup?email=zzz@mergington.edu")
	for _, email := range []string{"one@mergington.edu", "two@mergington.edu", "six@mergington.edu"} {
		do(http.MethodPost, "/activities/Gym%20Class/signup?email="+email)
	}

	body := do(http.MethodGet, "/activities")
	var activities map[string]registry.ActivityView
	require.NoError(t, json.Unmarshal(body, &activities))

	gym := activities["Gym Class"].Participants
	require.Equal(t, []string{"aaa@mergington.edu", "one@mergington.edu", "two@mergington.edu", "six@mergington.edu"}, gym[len(gym)-4:])
	require.NotContains(t, gym, "zzz@mergington.edu")
	require.Contains(t, activities["Art Studio"].Participants, "zzz@mergington.edu")

	order := make([]int, 0, 3)
	for _, name := range []string{"Chess Club", "Programming Class", "Gym Class"} {
		order = append(order, strings.Index(string(body), `"`+name+`"`))
	}
	require.True(t, order[0] >= 0 && order[0] < order[1] && order[1] < order[2], string(body))
}

func TestHealthReportsCatalog(t *testing.T) {
	env := setupEnrollmentApp(t, 100)

	resp, body := send(t, env.app, http.MethodGet, "/api/v1/health")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "GEMA Activities API", resp.Header.Get("X-Application"))

	var payload struct {
		Data handler.HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Equal(t, 9, payload.Data.Activities)
	require.Equal(t, "gema:activities", payload.Data.EventsChannel)
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
