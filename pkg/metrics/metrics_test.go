package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilReceiversAreSafe(t *testing.T) {
	var om *OrderMetrics
	om.IncOrderCreated("success")
	om.ObserveCreationDuration(time.Second)

	var tm *TaskMetrics
	tm.IncExecution("send_order_confirmation_email", "success")
	tm.SetDeadLetterRecent(3)
}

func TestRegistersWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	om := NewOrderMetrics(reg)
	om.IncOrderCreated("success")
	om.IncLockAcquisition("timeout")
	om.AddOrderValue("pending", 120.50)

	tm := NewTaskMetrics(reg)
	tm.ObserveDuration("process_payment_webhook", 250*time.Millisecond)
	tm.IncExecution("process_payment_webhook", "retryable")
}
