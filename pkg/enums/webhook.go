package enums

import "fmt"

// WebhookStatus is the status token carried by a payment provider event.
type WebhookStatus string

const (
	WebhookStatusSuccess WebhookStatus = "success"
	WebhookStatusFailed  WebhookStatus = "failed"
)

var validWebhookStatuses = []WebhookStatus{
	WebhookStatusSuccess,
	WebhookStatusFailed,
}

// String implements fmt.Stringer.
func (w WebhookStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WebhookStatus.
func (w WebhookStatus) IsValid() bool {
	for _, candidate := range validWebhookStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWebhookStatus converts raw input into a WebhookStatus.
func ParseWebhookStatus(value string) (WebhookStatus, error) {
	for _, candidate := range validWebhookStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook status %q", value)
}

// WebhookEventType labels the kind of provider event stored on a WebhookEvent row.
type WebhookEventType string

const (
	WebhookEventTypePayment WebhookEventType = "payment"
)
