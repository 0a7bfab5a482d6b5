package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/config"
	"github.com/amirphl/segment-backoffice/utils"
)

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// MetadataFromContext reads the request values handlers attach to the context
func MetadataFromContext(ctx context.Context) *ClientMetadata {
	cm := NewClientMetadata(contextString(ctx, utils.IPAddressKey), contextString(ctx, utils.UserAgentKey))
	cm.SetRequestID(contextString(ctx, utils.RequestIDKey))
	cm.Endpoint = contextString(ctx, utils.EndpointKey)
	return cm
}

// Session is the operator behind a request: the raw bearer token forwarded to
// the backend and whatever could be read from it
type Session struct {
	AccessToken string
	Claims      *services.OperatorClaims
}

// Operator labels the session for audit rows
func (s Session) Operator() string {
	if s.Claims == nil {
		return "anonymous"
	}
	return s.Claims.Operator()
}

// Fingerprint is the token digest used in cache keys
func (s Session) Fingerprint() string {
	if s.Claims == nil {
		return "anonymous"
	}
	return s.Claims.Fingerprint
}

// WithSession attaches the operator session to ctx
func WithSession(ctx context.Context, s Session) context.Context {
	ctx = context.WithValue(ctx, utils.AccessTokenKey, s.AccessToken)
	return context.WithValue(ctx, utils.OperatorKey, s.Claims)
}

// SessionFromContext returns the session attached by WithSession
func SessionFromContext(ctx context.Context) Session {
	s := Session{AccessToken: contextString(ctx, utils.AccessTokenKey)}
	if claims, ok := ctx.Value(utils.OperatorKey).(*services.OperatorClaims); ok {
		s.Claims = claims
	}
	return s
}

func contextString(ctx context.Context, key utils.ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// redisKey namespaces a key under the configured prefix
func redisKey(cfg config.CacheConfig, format string, args ...any) string {
	return cfg.RedisPrefix + fmt.Sprintf(format, args...)
}
