package request

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/payment-portal/internal/core/events"
	"github.com/frahmantamala/payment-portal/internal/metrics"
)

// EventHandler turns lifecycle events into notifications. Delivery is a
// structured log line until a mail transport exists.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

func (h *EventHandler) HandleRequestSubmitted(ctx context.Context, event events.Event) error {
	submitted, ok := event.(*events.RequestSubmittedEvent)
	if !ok {
		h.logger.Error("invalid event type for request submitted handler", "event_type", event.EventType())
		return fmt.Errorf("expected RequestSubmittedEvent, got %T", event)
	}
	metrics.RequestsSubmittedTotal.WithLabelValues(submitted.RequestType).Inc()

	if submitted.ApproverID == "" {
		h.logger.Warn("submitted request has no approver assigned",
			"request_id", submitted.RequestID,
			"employee_email", submitted.EmployeeEmail,
			"event_id", submitted.EventID())
		return nil
	}

	h.logger.Info("notify approver of new request",
		"request_id", submitted.RequestID,
		"approver_id", submitted.ApproverID,
		"employee_name", submitted.EmployeeName,
		"request_type", submitted.RequestType,
		"amount", submitted.Amount,
		"event_id", submitted.EventID())
	return nil
}

func (h *EventHandler) HandleRequestDecided(ctx context.Context, event events.Event) error {
	decided, ok := event.(*events.RequestDecidedEvent)
	if !ok {
		h.logger.Error("invalid event type for request decided handler", "event_type", event.EventType())
		return fmt.Errorf("expected RequestDecidedEvent, got %T", event)
	}
	metrics.RequestDecisionsTotal.WithLabelValues(decided.Status).Inc()

	h.logger.Info("notify employee of decision",
		"request_id", decided.RequestID,
		"employee_email", decided.EmployeeEmail,
		"status", decided.Status,
		"approver_name", decided.ApproverName,
		"event_id", decided.EventID())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeRequestSubmitted, h.HandleRequestSubmitted)
	eventBus.Subscribe(events.EventTypeRequestDecided, h.HandleRequestDecided)

	h.logger.Info("request event handlers registered",
		"handlers", []string{events.EventTypeRequestSubmitted, events.EventTypeRequestDecided})
}
