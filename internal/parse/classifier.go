package parse

import (
	"encoding/json"
	"fmt"
)

// ClassifiedEvent holds one parsed JSONL line. Exactly one of the event
// pointers is non-nil, selected by the type discriminator.
type ClassifiedEvent struct {
	Type string

	User      *UserEvent
	Assistant *AssistantEvent
	System    *SystemEvent
	Summary   *SummaryEvent
}

// ClassifyLine parses a JSONL line using two-pass parsing: first the type
// discriminator, then the matching concrete event type. Unknown types return
// a ClassifiedEvent with no payload set so callers can skip them.
func ClassifyLine(line []byte) (*ClassifiedEvent, error) {
	if len(line) == 0 {
		return nil, fmt.Errorf("empty line")
	}

	var discriminator struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &discriminator); err != nil {
		return nil, fmt.Errorf("parse discriminator: %w", err)
	}

	out := &ClassifiedEvent{Type: discriminator.Type}

	switch discriminator.Type {
	case EventTypeUser:
		var ev UserEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse user event: %w", err)
		}
		out.User = &ev

	case EventTypeAssistant:
		var ev AssistantEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse assistant event: %w", err)
		}
		out.Assistant = &ev

	case EventTypeSystem:
		var ev SystemEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse system event: %w", err)
		}
		out.System = &ev

	case EventTypeSummary:
		var ev SummaryEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parse summary event: %w", err)
		}
		out.Summary = &ev
	}

	return out, nil
}
