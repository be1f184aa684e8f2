package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"roombook/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	permReadAvailability  = "read:availability"
	permWriteBookings     = "write:bookings"
	clientKeyUnknown      = "unknown"
)

var (
	errMissingCredentials = errors.New("missing api key headers")
	errInvalidAPIKey      = errors.New("invalid api key")
	errInvalidExtra       = errors.New("invalid extra header")
	errPermissionDenied   = errors.New("permission denied")
	errRateLimited        = errors.New("rate limit exceeded")
)

// keyring resolves API clients and checks their permissions. It is shared by
// the HTTP and gRPC front ends.
type keyring struct {
	cfg         *config.APIConfig
	clients     map[string]config.APIClientKey
	apiKeyName  string
	extraName   string
	rateLimiter *rateLimiter
}

func newKeyring(cfg *config.APIConfig) *keyring {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	apiKeyName := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderAPIKey))
	if apiKeyName == "" {
		apiKeyName = apiKeyHeaderDefault
	}
	extraName := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderExtra))
	if extraName == "" {
		extraName = apiExtraHeaderDefault
	}
	return &keyring{
		cfg:         cfg,
		clients:     m,
		apiKeyName:  apiKeyName,
		extraName:   extraName,
		rateLimiter: newRateLimiter(cfg),
	}
}

func (k *keyring) authenticate(apiKey, extra, required string) error {
	if apiKey == "" || extra == "" {
		return errMissingCredentials
	}
	client, ok := k.clients[apiKey]
	if !ok {
		return errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}
	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func (k *keyring) allow(clientKey string) bool {
	if k.cfg.RateLimit.RPS <= 0 {
		return true
	}
	return k.rateLimiter.getLimiter(clientKey).Allow()
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	keys *keyring
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{keys: newKeyring(&cfg)}
}

func (a *HTTPAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.keys.cfg.Auth.Enabled {
			apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyName))
			extra := strings.TrimSpace(r.Header.Get(a.keys.extraName))
			if err := a.keys.authenticate(apiKey, extra, requiredPermissionHTTP(r)); err != nil {
				code := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					code = http.StatusForbidden
				}
				writeError(w, code, err.Error())
				return
			}
		}

		if !a.keys.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case strings.HasPrefix(path, "/availability"),
		strings.HasPrefix(path, "/price"),
		strings.HasPrefix(path, "/rooms/"):
		return permReadAvailability
	case strings.HasPrefix(path, "/bookings"), strings.HasPrefix(path, "/invoices"):
		return permWriteBookings
	}
	return ""
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyName)); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

type AuthInterceptor struct {
	keys *keyring
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{keys: newKeyring(cfg)}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.keys.cfg.Auth.Enabled {
			if err := a.checkAuth(ctx, info.FullMethod); err != nil {
				return nil, err
			}
		}
		if !a.keys.allow(a.clientKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, errRateLimited.Error())
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) checkAuth(ctx context.Context, fullMethod string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	err := a.keys.authenticate(first(md.Get(a.keys.apiKeyName)), first(md.Get(a.keys.extraName)), requiredPermission(fullMethod))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Unauthenticated, err.Error())
	}
}

// requiredPermission covers the read-only availability service; every method
// on it needs the same permission.
func requiredPermission(fullMethod string) string {
	if strings.HasPrefix(fullMethod, "/"+availabilityServiceName+"/") {
		return permReadAvailability
	}
	return ""
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.keys.apiKeyName)); apiKey != "" {
		return apiKey
	}
	return peerAddr(ctx)
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
