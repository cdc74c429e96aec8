package ws

const (
	// Lifecycle
	Connected      = "connected"
	ServerShutdown = "server:shutdown"

	// Sync
	StateSync = "state:sync"
	SyncError = "sync:error"

	// Errors
	AuthError   = "error:auth"
	RateLimited = "error:rate_limited"
	ErrorEvent  = "error"
)
