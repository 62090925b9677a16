package stream

import (
	"encoding/json"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation
// (future-proof for new event types).
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	// Map subject to payload struct for structural validation.
	var target any
	switch subject {
	case SubjectMessageSent:
		target = &MessageSentPayload{}
	case SubjectMessageAcked:
		target = &MessageAckedPayload{}
	case SubjectMessageExpired:
		target = &MessageExpiredPayload{}
	case SubjectTaskDelegated:
		target = &TaskDelegatedPayload{}
	case SubjectTaskUpdated:
		target = &TaskUpdatedPayload{}
	case SubjectTaskCompleted:
		target = &TaskCompletedPayload{}
	case SubjectAgentRegistered:
		target = &AgentRegisteredPayload{}
	case SubjectAgentDeactivated:
		target = &AgentDeactivatedPayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
