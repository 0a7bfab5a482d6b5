package utils

import (
	"time"
)

// ContextKey is the type of request-scoped values attached by handlers
type ContextKey string

// Request context keys
const (
	RequestIDKey   ContextKey = "request_id"
	UserAgentKey   ContextKey = "user_agent"
	IPAddressKey   ContextKey = "ip_address"
	EndpointKey    ContextKey = "endpoint"
	TimeoutKey     ContextKey = "timeout"
	OperatorKey    ContextKey = "operator"
	AccessTokenKey ContextKey = "access_token"
)

// Fiber locals keys set by the auth middleware
const (
	LocalAccessToken = "access_token"
	LocalOperator    = "operator"
	LocalRequestID   = "request_id"
)

// History and window constants
const (
	// MillisecondsThreshold separates second-precision timestamps from millisecond ones
	MillisecondsThreshold = 10_000_000_000

	// DefaultTimelineWindow is the look-back used when the caller gives no window
	DefaultTimelineWindow = 48 * time.Hour

	// DefaultStatisticsWindow is the look-back for aggregate segment statistics
	DefaultStatisticsWindow = 7 * 24 * time.Hour
)

// Listing constants
const (
	DefaultUsersPageSize = 20
	MaxUsersPageSize     = 500
)

// Cache key formats
const (
	TagListCacheKey     = "tags:list:%s:%s:%s"  // prefix, token fingerprint, scope
	TagListCachePattern = "tags:list:%s:*"      // prefix
	SegmentListCacheKey = "segments:list:%s:%s" // prefix, token fingerprint
	SegmentListPattern  = "segments:list:%s:*"  // prefix
	SegmentSetupLockKey = "segments:setup:lock:%s"
	TagDraftKey         = "tags:draft:%s"
)

// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
const CORSMaxAge = 86400
