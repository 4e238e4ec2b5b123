package constants

import "time"

// Context keys set by the authentication middleware
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUsername  = "username"
	ContextKeyRequestID = "request_id"
)

// HTTP headers and query parameters
const (
	HeaderRequestID          = "X-Request-ID"
	QueryParamAccessToken    = "access_token"
	AuthorizationScheme      = "Bearer"
	NotificationHubPath      = "/notificationHub"
	EventReceiveNotification = "ReceiveNotification"
)

// Validation limits
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	MaxTitleLength    = 255
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Token lifetimes
const (
	RefreshTokenBytes  = 64
	MinJWTSecretLength = 32
	MinBcryptCost      = 10
	AccessTokenLeeway  = 30 * time.Second
	// FirstUserID is the id the first registered user receives; that user is admin
	// unless ADMIN_USER_ID is configured.
	FirstUserID uint64 = 1
)

// AI task suggestions
const (
	MaxAIGeneratedTasks = 20
	AIRequestTimeout    = 30 * time.Second
)

// Hub
const (
	HubClientBufferSize = 16
	HubWriteTimeout     = 10 * time.Second
)
