package chatclient

import "time"

const invalidTime = "--:--"

// FormatMessageTime renders t as 24-hour "HH:MM" in local time.
func FormatMessageTime(t time.Time) string {
	if t.IsZero() {
		return invalidTime
	}
	return t.Local().Format("15:04")
}

// FormatMessageTimeString parses an RFC 3339 timestamp and formats it like FormatMessageTime.
func FormatMessageTimeString(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return invalidTime
	}
	return FormatMessageTime(t)
}
