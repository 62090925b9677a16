package stream

// MessageSentPayload is the schema for messages.sent events.
type MessageSentPayload struct {
	MessageID string `json:"message_id"`
	From      string `json:"from_agent_id"`
	To        string `json:"to_agent_id"`
	Kind      string `json:"message_type"`
	Priority  string `json:"priority"`
	SentAt    string `json:"sent_at"`
}

// MessageAckedPayload is the schema for messages.acked events.
type MessageAckedPayload struct {
	MessageID string `json:"message_id"`
	AgentID   string `json:"agent_id"`
}

// MessageExpiredPayload is the schema for messages.expired events, emitted
// once per compaction sweep with the number of envelopes removed.
type MessageExpiredPayload struct {
	Removed int    `json:"removed"`
	SweptAt string `json:"swept_at"`
}

// TaskDelegatedPayload is the schema for tasks.delegated events.
type TaskDelegatedPayload struct {
	TaskID    string `json:"task_id"`
	From      string `json:"from_agent_id"`
	To        string `json:"to_agent_id"`
	Name      string `json:"task_name"`
	MessageID string `json:"message_id"`
}

// TaskUpdatedPayload is the schema for tasks.updated events.
type TaskUpdatedPayload struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// TaskCompletedPayload is the schema for tasks.completed events.
type TaskCompletedPayload struct {
	TaskID string `json:"task_id"`
	From   string `json:"from_agent_id"`
	To     string `json:"to_agent_id"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// AgentRegisteredPayload is the schema for agents.registered events.
type AgentRegisteredPayload struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	IsAgent bool   `json:"is_agent"`
}

// AgentDeactivatedPayload is the schema for agents.deactivated events.
type AgentDeactivatedPayload struct {
	AgentID string `json:"agent_id"`
}
