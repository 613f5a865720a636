package enums

import "fmt"

// TaskName identifies a background task type. The worker dispatches queued
// payloads to handlers registered under these names.
type TaskName string

const (
	TaskSendOrderConfirmationEmail TaskName = "send_order_confirmation_email"
	TaskProcessPaymentWebhook      TaskName = "process_payment_webhook"
)

var validTaskNames = []TaskName{
	TaskSendOrderConfirmationEmail,
	TaskProcessPaymentWebhook,
}

// String implements fmt.Stringer.
func (t TaskName) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TaskName.
func (t TaskName) IsValid() bool {
	for _, candidate := range validTaskNames {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTaskName converts raw input into a TaskName.
func ParseTaskName(value string) (TaskName, error) {
	for _, candidate := range validTaskNames {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task name %q", value)
}
