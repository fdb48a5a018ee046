package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/mblarsen/clin/internal/ipc"
)

// Notifier is an interface for sending desktop notifications.
type Notifier interface {
	// Notify sends a desktop notification.
	Notify(title, message string) error
}

// Desktop sends notifications through the platform notification service.
type Desktop struct {
	Icon string
}

// NewDesktop creates a Desktop notifier for the clin application.
func NewDesktop() *Desktop {
	beeep.AppName = "clin"
	return &Desktop{}
}

// Notify sends a desktop notification.
func (d *Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, d.Icon)
}

// Title returns the notification title for an event's outcome.
func Title(s ipc.ExitStatus) string {
	switch {
	case s.IsSignal():
		return "Error ✗ -- killed by " + s.Signal
	case s.Code != 0:
		return fmt.Sprintf("Error ✗ -- exit status: %d", s.Code)
	default:
		return "Complete ✓"
	}
}

// Format renders an event as a notification title and body.
func Format(e ipc.Event) (title, message string) {
	var sb strings.Builder
	sb.WriteString(e.Command)
	sb.WriteString("\ntook ")
	sb.WriteString(FormatDuration(e.Duration))
	if e.Origin != "" {
		sb.WriteString(" on ")
		sb.WriteString(e.Origin)
	}
	return Title(e.Status), sb.String()
}

// FormatDuration rounds d for display: milliseconds below a second, tenths of
// a second below a minute, whole seconds after that.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
