package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	RabbitMQ        Category = "RabbitMQ"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	Signaling       Category = "Signaling"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Signaling
	Connect    SubCategory = "Connect"
	Disconnect SubCategory = "Disconnect"
	Routing    SubCategory = "Routing"
	Delivery   SubCategory = "Delivery"
	History    SubCategory = "History"

	// RabbitMQ
	Publish SubCategory = "Publish"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
	PeerID       ExtraKey = "PeerId"
	RoomID       ExtraKey = "RoomId"
	TargetID     ExtraKey = "TargetId"
	MessageType  ExtraKey = "MessageType"
	Reason       ExtraKey = "Reason"
)
