package chat

import (
	"encoding/json"
	"fmt"

	"github.com/gamplo/gamplo-go/pkg/exception"
	"github.com/gamplo/gamplo-go/pkg/model"
)

// ParseEvent decodes the JSON payload of one event line.
func ParseEvent(payload string) (model.ChatEvent, error) {
	var event model.ChatEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return model.ChatEvent{}, fmt.Errorf("%w: %w", exception.ErrInvalidEvent, err)
	}
	if event.Type == "" {
		return model.ChatEvent{}, fmt.Errorf("%w: missing type", exception.ErrInvalidEvent)
	}
	return event, nil
}
