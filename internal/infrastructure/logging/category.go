package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	WebSocket       Category = "WebSocket"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// WebSocket
	Connect   SubCategory = "Connect"
	Auth      SubCategory = "Auth"
	Broadcast SubCategory = "Broadcast"
	Sync      SubCategory = "Sync"
	Backplane SubCategory = "Backplane"

	// Internal
	Cache          SubCategory = "Cache"
	Reconciliation SubCategory = "Reconciliation"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	ConnectionID ExtraKey = "ConnectionID"
	TenantID     ExtraKey = "TenantID"
	RoomID       ExtraKey = "RoomID"
	OrderID      ExtraKey = "OrderID"
	EventType    ExtraKey = "EventType"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
)
