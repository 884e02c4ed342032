package responder

// Status values of the response envelope.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope every endpoint answers with. Data may be set on
// error responses when the failed operation still produced a resource.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  *Error `json:"error,omitempty"`
	Meta   Meta   `json:"meta"`
}

// Error represents the error structure in API responses
type Error struct {
	Code    string `json:"code"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta represents metadata in API responses
type Meta struct {
	TraceId string `json:"traceId,omitempty"`
	Took    int64  `json:"took,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

type Option func(*Meta)

func WithTraceID(id string) Option {
	return func(m *Meta) {
		m.TraceId = id
	}
}

func WithTook(ms int64) Option {
	return func(m *Meta) {
		m.Took = ms
	}
}

// WithCount records the number of items in a list payload.
func WithCount(n int) Option {
	return func(m *Meta) {
		m.Count = &n
	}
}

func NewMeta(opts ...Option) *Meta {
	meta := Meta{}
	for _, opt := range opts {
		opt(&meta)
	}
	return &meta
}
