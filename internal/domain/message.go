package domain

import (
	"strings"
	"time"
)

// Message is one logged message. It is never mutated after parsing.
type Message struct {
	RawTimestamp string    `json:"time_stamp"`
	Timestamp    time.Time `json:"-"`
	SenderID     string    `json:"user_name"`
	Text         string    `json:"narrative_entry"`
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006",
	"1/2/2006",
}

// FormattedTimestampLayout is the layout of the formatted_timestamp column.
const FormattedTimestampLayout = "2006-01-02 15:04:05"

// ParseTimestamp parses ISO-8601 and a handful of common log layouts.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NewMessage builds a Message, parsing the timestamp when possible.
func NewMessage(rawTimestamp, sender, text string) Message {
	ts, _ := ParseTimestamp(rawTimestamp)
	return Message{
		RawTimestamp: rawTimestamp,
		Timestamp:    ts,
		SenderID:     sender,
		Text:         text,
	}
}

// FormattedTimestamp renders the parsed timestamp or "" if it did not parse.
func (m Message) FormattedTimestamp() string {
	if m.Timestamp.IsZero() {
		return ""
	}
	return m.Timestamp.Format(FormattedTimestampLayout)
}
