package webhook

// GitHub delivery headers.
const (
	HeaderSignature = "X-Hub-Signature-256"
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
)

// Event types with built-in handling.
const (
	EventPing         = "ping"
	EventIssues       = "issues"
	EventIssueComment = "issue_comment"
)

// Config holds webhook endpoint configuration.
type Config struct {
	// Path is the URL path the endpoint is mounted on (default "/webhook").
	Path string

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB).
	MaxBodySize int64
}

// Response is the JSON body of every webhook reply.
type Response struct {
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Default values
const (
	DefaultPath        = "/webhook"
	DefaultMaxBodySize = 1048576 // 1 MB
)
