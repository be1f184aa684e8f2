package api

import (
	"net/http"
	"testing"

	"roombook/internal/config"

	"github.com/stretchr/testify/assert"
)

func authConfig() config.APIConfig {
	return config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "reader", Extra: "r-secret", Name: "dashboard", Permissions: []string{permReadAvailability}},
				{Key: "admin", Extra: "a-secret", Name: "backoffice"},
			},
		},
	}
}

func TestHTTPAuth(t *testing.T) {
	st := newStack(t)
	ts := newTestServer(t, st, authConfig())
	bookings := ts.URL + "/api/v1/bookings"
	occupancy := ts.URL + "/api/v1/rooms/1/occupancy?dates=2025-03-01"

	tests := []struct {
		name    string
		url     string
		headers []string
		want    int
	}{
		{"no credentials", bookings, nil, http.StatusUnauthorized},
		{"unknown key", bookings, []string{"X-API-Key", "nope", "X-API-Extra", "x"}, http.StatusUnauthorized},
		{"wrong extra", bookings, []string{"X-API-Key", "reader", "X-API-Extra", "x"}, http.StatusUnauthorized},
		{"missing permission", bookings, []string{"X-API-Key", "reader", "X-API-Extra", "r-secret"}, http.StatusForbidden},
		{"read permission", occupancy, []string{"X-API-Key", "reader", "X-API-Extra", "r-secret"}, http.StatusOK},
		{"no permission list means all", bookings, []string{"X-API-Key", "admin", "X-API-Extra", "a-secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, http.MethodGet, tt.url, nil, tt.headers...)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHTTPRateLimit(t *testing.T) {
	st := newStack(t)
	cfg := authConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	ts := newTestServer(t, st, cfg)
	url := ts.URL + "/api/v1/bookings"

	for i := 0; i < 2; i++ {
		resp, _ := do(t, http.MethodGet, url, nil, "X-API-Key", "admin", "X-API-Extra", "a-secret")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := do(t, http.MethodGet, url, nil, "X-API-Key", "admin", "X-API-Extra", "a-secret")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, url, nil, "X-API-Key", "reader", "X-API-Extra", "r-secret")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "buckets are per key and auth runs first")
}

func TestCustomHeaderNames(t *testing.T) {
	st := newStack(t)
	cfg := authConfig()
	cfg.Auth.HeaderAPIKey = "X-Client"
	cfg.Auth.HeaderExtra = "X-Client-Secret"
	ts := newTestServer(t, st, cfg)

	resp, _ := do(t, http.MethodGet, ts.URL+"/api/v1/bookings", nil, "X-Client", "admin", "X-Client-Secret", "a-secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequiredPermission(t *testing.T) {
	assert.Equal(t, permReadAvailability, requiredPermission("/"+availabilityServiceName+"/GetOccupancy"))
	assert.Equal(t, "", requiredPermission("/grpc.health.v1.Health/Check"))
}
