//go:build linux

package alerts

import (
	"fmt"
	"os/exec"

	"github.com/charmbracelet/log"
)

// NotifySendNotifier sends Linux desktop notifications via notify-send.
// Notifications are sent in a non-blocking goroutine so a slow notification
// daemon never stalls the UI loop.
type NotifySendNotifier struct {
	// enabled controls whether notifications are actually sent.
	// When false, Notify is a no-op.
	enabled bool
	run     func(name string, args ...string) error
}

// NewNotifySendNotifier creates a new Linux notification sender.
// If enabled is false, notifications are silently dropped.
func NewNotifySendNotifier(enabled bool) *NotifySendNotifier {
	return &NotifySendNotifier{enabled: enabled, run: runCommand}
}

// NewPlatformNotifier creates the platform-appropriate notifier for Linux.
func NewPlatformNotifier(enabled bool) Notifier {
	return NewNotifySendNotifier(enabled)
}

// Notify sends a Linux desktop notification for the given alert.
func (n *NotifySendNotifier) Notify(alert Alert) {
	if !n.enabled {
		return
	}

	title, body, urgency := notifySendArgs(alert)
	go func() {
		if err := n.run("notify-send", "--urgency", urgency, "--app-name", "grouptop", title, body); err != nil {
			log.Warn("failed to send Linux notification", "err", err)
		}
	}()
}

func notifySendArgs(alert Alert) (title, body, urgency string) {
	title = fmt.Sprintf("grouptop: %s", alert.Rule)
	body = alert.Message
	if alert.ReportID != "" {
		body = fmt.Sprintf("Report: %s\n%s", truncateReportID(alert.ReportID), alert.Message)
	}

	// Map severity to notify-send urgency level.
	switch alert.Severity {
	case SeverityCritical:
		urgency = "critical"
	case SeverityInfo:
		urgency = "low"
	default:
		urgency = "normal"
	}
	return title, body, urgency
}

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}
