package notifier

import (
	"fmt"
	"strings"

	"receptionist/internal/events"
	"receptionist/internal/timewindow"
)

// Render turns a published event into the text sent to the business.
func Render(event *events.Event) (businessID, text string, err error) {
	switch event.Type {
	case events.EventAppointmentCreated, events.EventAppointmentCancelled:
		var p events.AppointmentEventPayload
		if err := event.Decode(&p); err != nil {
			return "", "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return p.BusinessID, renderAppointment(event.Type, p), nil

	case events.EventOrderCreated:
		var p events.OrderEventPayload
		if err := event.Decode(&p); err != nil {
			return "", "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return p.BusinessID, fmt.Sprintf("New Order:\nCustomer: %s (%s)\nItems: %s\nTotal: $%.2f\nPickup: %s\nNotes: %s",
			p.CustomerName, p.Phone, p.OrderItems, p.Total, p.PickupTime, orNone(p.SpecialInstructions)), nil

	case events.EventMessageCreated:
		var p events.MessageEventPayload
		if err := event.Decode(&p); err != nil {
			return "", "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return p.BusinessID, fmt.Sprintf("New Message:\nFrom: %s (%s)\nMessage: %s\nPriority: %s",
			p.CallerName, p.Phone, p.Message, p.Priority), nil

	case events.EventUnknownQuestion:
		var p events.UnknownQuestionPayload
		if err := event.Decode(&p); err != nil {
			return "", "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		return p.BusinessID, fmt.Sprintf("Unanswered question: %q", p.Question), nil
	}

	return "", "", fmt.Errorf("unknown event type %q", event.Type)
}

func renderAppointment(kind string, p events.AppointmentEventPayload) string {
	var b strings.Builder
	if kind == events.EventAppointmentCancelled {
		b.WriteString("Appointment Cancelled:\n")
	} else {
		b.WriteString("New Appointment:\n")
	}
	fmt.Fprintf(&b, "Customer: %s (%s)\n", p.CustomerName, p.Phone)
	if p.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", p.Email)
	}
	if p.Service != "" {
		fmt.Fprintf(&b, "Service: %s\n", p.Service)
	}
	switch {
	case !p.Start.IsZero():
		fmt.Fprintf(&b, "When: %s\n", timewindow.FormatSlot(p.Start))
	case p.RequestedTime != "":
		fmt.Fprintf(&b, "When: %s\n", p.RequestedTime)
	}
	fmt.Fprintf(&b, "Notes: %s", orNone(p.Notes))
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}
