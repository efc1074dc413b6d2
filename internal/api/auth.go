package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"receptionist/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	permReadBusiness      = "read:business"
	permExport            = "export:appointments"
	permReflection        = "admin:reflection"
	clientKeyUnknown      = "unknown"
	healthServicePrefix   = "/grpc.health.v1.Health/"
	reflectionPrefix      = "/grpc.reflection."
)

var (
	errMissingKeys      = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
)

// keyChecker validates an api key pair and its permission; shared by HTTP and gRPC.
type keyChecker struct {
	cfg     config.APIAuthConfig
	clients map[string]config.APIClientKey
}

func newKeyChecker(cfg config.APIAuthConfig) *keyChecker {
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &keyChecker{cfg: cfg, clients: m}
}

func (k *keyChecker) apiKeyHeader() string {
	if h := strings.ToLower(strings.TrimSpace(k.cfg.HeaderAPIKey)); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func (k *keyChecker) extraHeader() string {
	if h := strings.ToLower(strings.TrimSpace(k.cfg.HeaderExtra)); h != "" {
		return h
	}
	return apiExtraHeaderDefault
}

func (k *keyChecker) check(apiKey, extra, required string) error {
	if apiKey == "" || extra == "" {
		return errMissingKeys
	}
	client, ok := k.clients[apiKey]
	if !ok {
		return errInvalidKey
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

// AuthInterceptor guards gRPC methods other than health checks.
type AuthInterceptor struct {
	cfg     *config.APIConfig
	keys    *keyChecker
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:     cfg,
		keys:    newKeyChecker(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := a.authorize(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := a.authorize(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (a *AuthInterceptor) authorize(ctx context.Context, fullMethod string) error {
	if !a.cfg.Enabled || strings.HasPrefix(fullMethod, healthServicePrefix) {
		return nil
	}
	if a.cfg.Auth.Enabled {
		if err := a.checkAuth(ctx, fullMethod); err != nil {
			return err
		}
	}
	if !a.limiter.allow(a.clientKey(ctx)) {
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return nil
}

func (a *AuthInterceptor) checkAuth(ctx context.Context, fullMethod string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	err := a.keys.check(first(md.Get(a.keys.apiKeyHeader())), first(md.Get(a.keys.extraHeader())), requiredPermission(fullMethod))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Unauthenticated, err.Error())
	}
}

func requiredPermission(fullMethod string) string {
	switch {
	case strings.HasPrefix(fullMethod, healthServicePrefix):
		return ""
	case strings.HasPrefix(fullMethod, reflectionPrefix):
		return permReflection
	default:
		return ""
	}
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.keys.apiKeyHeader())); apiKey != "" {
		return apiKey
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
