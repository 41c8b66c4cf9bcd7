package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// The relay delivers at least once; envelopes seen within this window are
// not mailed twice.
const dedupeWindow = time.Hour

// Notifier e-mails patients when their appointment is booked or canceled.
type Notifier struct {
	mailer  Mailer
	enabled bool
	logger  *logger.Logger
	seen    *cache.Cache
}

func NewNotifier(mailer Mailer, enabled bool, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		mailer:  mailer,
		enabled: enabled,
		logger:  log.Named("notifier"),
		seen:    cache.New(dedupeWindow, 2*dedupeWindow),
	}
}

// Handle is a messaging.Handler for the event channel.
func (n *Notifier) Handle(ctx context.Context, payload []byte) error {
	var env model.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("invalid envelope: %w", err)
	}
	_, err := n.Notify(ctx, env)
	return err
}

func (n *Notifier) Notify(ctx context.Context, env model.Envelope) (model.NotificationStatus, error) {
	msg, err := render(env)
	if err != nil {
		return model.NotificationStatusFailed, err
	}
	if msg == nil {
		return model.NotificationStatusSkipped, nil
	}
	if !n.enabled {
		n.logger.Debug("Email disabled, skipping", "event_id", env.ID.String(), "event_type", env.Type)
		return model.NotificationStatusSkipped, nil
	}

	key := env.ID.String()
	if _, dup := n.seen.Get(key); dup {
		return model.NotificationStatusSkipped, nil
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error(err, "Failed to send notification", "event_id", key, "event_type", env.Type)
		return model.NotificationStatusFailed, err
	}
	n.seen.SetDefault(key, struct{}{})
	n.logger.Info("Notification sent", "event_id", key, "event_type", env.Type)
	return model.NotificationStatusSent, nil
}

// render returns nil for events that do not mail anyone.
func render(env model.Envelope) (*model.Notification, error) {
	var subject, verb string
	switch env.Type {
	case model.EventAppointmentCreated:
		subject, verb = "Your appointment is booked", "is booked"
	case model.EventAppointmentCanceled:
		subject, verb = "Your appointment was canceled", "was canceled"
	default:
		return nil, nil
	}

	var ev model.AppointmentEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	if strings.TrimSpace(ev.PatientEmail) == "" {
		return nil, nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", nameOr(ev.PatientName, "there"))
	fmt.Fprintf(&body, "Your appointment with %s on %s at %s %s.\n",
		nameOr(ev.DoctorName, "your doctor"), ev.AppointmentDate, ev.AppointmentTime, verb)
	if env.Type == model.EventAppointmentCreated {
		fmt.Fprintf(&body, "It is planned for %d minutes.\n", ev.Duration)
	}
	body.WriteString("\nReference: " + ev.AppointmentID.String() + "\n")

	return &model.Notification{
		EventID:   env.ID,
		EventType: env.Type,
		Recipient: ev.PatientEmail,
		Subject:   subject,
		Body:      body.String(),
	}, nil
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
