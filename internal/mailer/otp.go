package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/access-control/internal/core/events"
)

const otpSubject = "Your password reset code"

func OtpMessage(email, code string, expiresAt time.Time) Message {
	return Message{
		To:      email,
		Subject: otpSubject,
		Body: fmt.Sprintf("Your password reset code is %s.\r\n\r\nIt expires at %s. If you did not ask to reset your password you can ignore this email.\r\n",
			code, expiresAt.UTC().Format(time.RFC1123)),
	}
}

// HandleOtpRequested is an event bus handler. Queueing failures are logged by
// the bus; the stored OTP is never touched.
func (d *Dispatcher) HandleOtpRequested(_ context.Context, e events.Event) error {
	event, ok := e.(*events.OtpRequestedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", e, e.EventType())
	}
	return d.Enqueue(OtpMessage(event.Email, event.Code, event.ExpiresAt))
}

func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeOtpRequested, d.HandleOtpRequested)
}
