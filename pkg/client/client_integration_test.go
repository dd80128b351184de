//go:build integration

package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/artic-table/internal/testutil"
	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func newIntegrationClient(t *testing.T, redisClient *redis.Client, baseURL string) *Client {
	t.Helper()
	cfg := DefaultConfig("TestApp/1.0.0 (integration@test.com)")
	cfg.BaseURL = baseURL
	cfg.Redis = redisClient
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIntegration_HeadersUpdateSharedState(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockArtic(30)
	defer mock.Close()
	mock.SetHeader(ratelimit.HeaderRemaining, "42")
	mock.SetHeader(ratelimit.HeaderReset, "60")

	c := newIntegrationClient(t, redisClient, mock.URL())
	ctx := context.Background()

	if _, err := c.FetchPage(ctx, 1, 12); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	// A second client sharing the Redis sees the same quota.
	other := newIntegrationClient(t, redisClient, mock.URL())
	state, err := other.RateLimiter().GetState(ctx)
	if err != nil {
		t.Fatalf("Failed to get rate limit state: %v", err)
	}
	if state.Remaining != 42 {
		t.Errorf("Remaining = %d, want 42", state.Remaining)
	}
	if !state.IsHealthy {
		t.Error("Expected healthy state")
	}
}

func TestIntegration_RateLimitBlock(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()

	redisClient.Set(ctx, ratelimit.RedisKeyRemaining, 1, 0)
	redisClient.Set(ctx, ratelimit.RedisKeyResetTimestamp, time.Now().Add(60*time.Second).Unix(), 0)

	mock := testutil.NewMockArtic(30)
	defer mock.Close()

	c := newIntegrationClient(t, redisClient, mock.URL())

	_, err := c.FetchPage(ctx, 1, 12)
	if err == nil {
		t.Fatal("Expected request to be blocked by rate limiter")
	}
	if !errors.Is(err, artwork.ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassRateLimit {
		t.Errorf("Expected rate_limit APIError, got %v", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("Blocked request reached upstream (%d requests)", mock.GetRequestCount())
	}
}

func TestIntegration_ExhaustedQuotaFromUpstream(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockArtic(30)
	defer mock.Close()
	mock.SetPageResponse(1, testutil.NewTooManyRequestsResponse())

	c := newIntegrationClient(t, redisClient, mock.URL())
	ctx := context.Background()

	_, err := c.FetchPage(ctx, 1, 12)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 429 {
		t.Fatalf("Expected 429 APIError, got %v", err)
	}

	// The 429 advertised zero remaining; the next call is refused locally.
	mock.Reset()
	_, err = c.FetchPage(ctx, 2, 12)
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassRateLimit {
		t.Errorf("Expected local rate_limit block, got %v", err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("Expected no upstream request, got %d", mock.GetRequestCount())
	}
}
