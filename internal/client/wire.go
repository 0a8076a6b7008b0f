// ABOUTME: Wire decoding for generation service responses
// ABOUTME: Tolerates numeric or string ids and naive ISO timestamps, reports missing required fields

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389/sketchbook/internal/conversation"
)

// flexID accepts a JSON string or number.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// timestampLayouts are tried in order. Timestamps without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// flexTime accepts RFC 3339 or naive ISO-8601 timestamps.
type flexTime time.Time

func (ft *flexTime) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("createdAt: %w", err)
	}
	if s == nil || *s == "" {
		*ft = flexTime{}
		return nil
	}
	t, err := parseTimestamp(*s)
	if err != nil {
		return err
	}
	*ft = flexTime(t)
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("createdAt: unrecognized timestamp %q", s)
}

// wireTurn is a turn as the service sends it. Nullable text fields decode to "".
type wireTurn struct {
	ID                flexID   `json:"id"`
	Prompt            *string  `json:"prompt"`
	InputImage        *string  `json:"inputImage"`
	OutputImage       *string  `json:"outputImage"`
	ModelResponseText *string  `json:"modelResponseText"`
	CreatedAt         flexTime `json:"createdAt"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// missing lists the required fields w lacks.
func (w wireTurn) missing() []string {
	var fields []string
	if w.ID == "" {
		fields = append(fields, "id")
	}
	if deref(w.Prompt) == "" {
		fields = append(fields, "prompt")
	}
	if deref(w.OutputImage) == "" {
		fields = append(fields, "outputImage")
	}
	return fields
}

func (w wireTurn) turn() conversation.Turn {
	return conversation.Turn{
		ID:                string(w.ID),
		Prompt:            deref(w.Prompt),
		InputImage:        deref(w.InputImage),
		OutputImage:       deref(w.OutputImage),
		ModelResponseText: deref(w.ModelResponseText),
		CreatedAt:         time.Time(w.CreatedAt),
	}
}

// decodeTurn decodes a single generation response. Any decoding problem or
// missing required field is a MalformedResponseError.
func decodeTurn(body []byte) (*conversation.Turn, error) {
	var w wireTurn
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &conversation.MalformedResponseError{Err: err}
	}
	if missing := w.missing(); len(missing) > 0 {
		return nil, &conversation.MalformedResponseError{Missing: missing}
	}
	t := w.turn()
	return &t, nil
}

// decodeHistory decodes a history listing. Entries are returned as sent;
// the session decides which ones can be committed.
func decodeHistory(body []byte) ([]conversation.Turn, error) {
	var ws []wireTurn
	if err := json.Unmarshal(body, &ws); err != nil {
		return nil, &conversation.MalformedResponseError{Err: err}
	}
	turns := make([]conversation.Turn, len(ws))
	for i, w := range ws {
		turns[i] = w.turn()
	}
	return turns, nil
}

// errorBody is the service's error envelope.
type errorBody struct {
	Error string `json:"error"`
}
