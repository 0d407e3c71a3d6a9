package models

// ErrorClass tags a publish failure with how it should be handled.
const (
	ErrorClassAuthExpired   = "auth_expired"
	ErrorClassTransient     = "transient"
	ErrorClassValidation    = "validation"
	ErrorClassConfiguration = "configuration"
)

// PublishResult is the per-platform outcome of one dispatch attempt. It is
// folded into the post's platform result map once every target has been tried.
type PublishResult struct {
	Success    bool   `json:"success"`
	PlatformID string `json:"platform_post_id,omitempty"`
	URL        string `json:"platform_post_url,omitempty"`
	ErrorClass string `json:"error_class,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Retryable reports whether the failure is worth another attempt. Validation
// and configuration problems are deterministic; expired auth needs the user
// to reconnect, not a retry.
func (r PublishResult) Retryable() bool {
	return !r.Success && r.ErrorClass == ErrorClassTransient
}
