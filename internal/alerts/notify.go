package alerts

// truncateReportID shortens a report id for display in notifications.
func truncateReportID(id string) string {
	if len(id) <= 24 {
		return id
	}
	return id[:24] + "..."
}

type nopNotifier struct{}

func (nopNotifier) Notify(Alert) {}
