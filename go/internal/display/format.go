package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/splitsync/go/internal/delayqueue"
)

const none = "None"

// FormatQueue renders pending commands as "cmd (secs)" with whole seconds
// left until each is due.
func FormatQueue(items []delayqueue.Item, now time.Time) string {
	if len(items) == 0 {
		return none
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		secs := item.DueAt.Sub(now).Milliseconds() / 1000
		if secs < 0 {
			secs = 0
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", item.Command, secs))
	}
	return strings.Join(parts, ", ")
}

// FormatOffset renders an event offset in seconds with one decimal.
func FormatOffset(offset time.Duration) string {
	return fmt.Sprintf("%.1f s", offset.Seconds())
}

// FormatReceived renders a recorded message with its receipt time.
func FormatReceived(text string, at time.Time) string {
	if text == "" {
		return none
	}
	return fmt.Sprintf("%s (%s)", text, at.Format("15:04:05"))
}
