package log

// Field names shared between the loggers and the request-logging middleware,
// so log consumers can key on one spelling.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
)

// Component names attached to every log record.
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentWorker = "worker"
	ComponentClient = "client"
)
