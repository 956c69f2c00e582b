package notify

import (
	"bytes"
	"fmt"
)

// FormatMessage builds the tenant-facing subject and body for e.
func FormatMessage(e Event, propertyName string) (subject, body string) {
	if propertyName == "" {
		propertyName = fmt.Sprintf("property %d", e.PropertyID)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hi,\n\n")

	switch e.Type {
	case EventRequested:
		subject = "Viewing request received"
		fmt.Fprintf(&buf, "We have received your request to view %s at %s.\n", propertyName, e.Time)
	case EventConfirmed:
		subject = "Viewing confirmed"
		fmt.Fprintf(&buf, "Your viewing of %s is confirmed for %s.\n", propertyName, e.Time)
	case EventSuggested:
		subject = "New viewing time suggested"
		fmt.Fprintf(&buf, "The agent cannot make your requested time for %s and suggests %s instead.\n", propertyName, e.Time)
		fmt.Fprintf(&buf, "Please accept or decline the suggestion.\n")
	case EventSuggestionAccepted:
		subject = "Viewing confirmed"
		fmt.Fprintf(&buf, "You accepted the suggested time. Your viewing of %s is confirmed for %s.\n", propertyName, e.Time)
	case EventDeclined, EventSuggestionDeclined:
		subject = "Viewing declined"
		fmt.Fprintf(&buf, "Your viewing of %s has been declined.\n", propertyName)
	case EventNoAlternative:
		subject = "No availability today"
		fmt.Fprintf(&buf, "There is no availability today for %s after %s.\n", propertyName, e.Time)
	default:
		subject = "Viewing update"
		fmt.Fprintf(&buf, "There is an update to your viewing of %s.\n", propertyName)
	}

	if e.Reason != "" {
		fmt.Fprintf(&buf, "\nReason: %s\n", e.Reason)
	}
	fmt.Fprintf(&buf, "\nThanks!\n")

	return subject, buf.String()
}
