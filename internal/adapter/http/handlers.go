package http

import (
	"net/http"
	"strconv"

	"github.com/arbiterhq/Switchboard/internal/domain/agent"
	"github.com/arbiterhq/Switchboard/internal/domain/message"
	"github.com/arbiterhq/Switchboard/internal/domain/task"
	"github.com/arbiterhq/Switchboard/internal/service"
)

// Handlers bundles the service dependencies for all HTTP endpoints.
type Handlers struct {
	Bus       *service.BusService
	Tasks     *service.DelegationService
	Discovery *service.DiscoveryService
	Registrar *service.RegistrarService
}

// --- Agents ---

func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.RegisterRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.ID, "id") || !requireField(w, req.Name, "name") {
		return
	}

	rec, err := h.Registrar.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Registrar.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	records, err := h.Registrar.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "agents not found")
		return
	}
	if records == nil {
		records = []agent.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handlers) DeactivateAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Registrar.Deactivate(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *Handlers) GetAgentCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := h.Discovery.Lookup(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, caps)
}

// --- Messages ---

func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	env, ok := readJSON[message.Envelope](w, r)
	if !ok {
		return
	}
	if !requireField(w, env.From, "from_agent_id") || !requireField(w, env.To, "to_agent_id") {
		return
	}

	sent, err := h.Bus.Send(r.Context(), &env)
	if err != nil {
		writeDomainError(w, err, "message not found")
		return
	}
	writeJSON(w, http.StatusCreated, sent)
}

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs := h.Bus.Pending(r.Context(), urlParam(r, "id"))
	if msgs == nil {
		msgs = []*message.Envelope{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handlers) CountMessages(w http.ResponseWriter, r *http.Request) {
	count := h.Bus.PendingCount(r.Context(), urlParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handlers) AcknowledgeMessage(w http.ResponseWriter, r *http.Request) {
	err := h.Bus.Acknowledge(r.Context(), urlParam(r, "id"), urlParam(r, "messageID"))
	if err != nil {
		writeDomainError(w, err, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// --- Tasks ---

func (h *Handlers) DelegateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.DelegateRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.FromAgent, "from_agent_id") ||
		!requireField(w, req.ToAgent, "to_agent_id") ||
		!requireField(w, req.Name, "name") {
		return
	}

	t, env, err := h.Tasks.Delegate(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": t, "message": env})
}

func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) ListAgentTasks(w http.ResponseWriter, r *http.Request) {
	status := task.Status(r.URL.Query().Get("status"))
	tasks := h.Tasks.ListByAgent(r.Context(), urlParam(r, "id"), status)
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) AcceptTask(w http.ResponseWriter, r *http.Request) {
	byAgent, ok := agentHeader(w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Accept(r.Context(), urlParam(r, "id"), byAgent)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) RejectTask(w http.ResponseWriter, r *http.Request) {
	byAgent, ok := agentHeader(w, r)
	if !ok {
		return
	}
	body, ok := readJSON[struct {
		Reason string `json:"reason"`
	}](w, r)
	if !ok {
		return
	}

	t, err := h.Tasks.Reject(r.Context(), urlParam(r, "id"), byAgent, body.Reason)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	byAgent, ok := agentHeader(w, r)
	if !ok {
		return
	}
	body, ok := readJSON[struct {
		Note     string         `json:"note"`
		Progress map[string]any `json:"progress,omitempty"`
	}](w, r)
	if !ok {
		return
	}

	env, err := h.Tasks.Update(r.Context(), urlParam(r, "id"), byAgent, body.Note, body.Progress)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *Handlers) CompleteTask(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		Notes  string         `json:"notes"`
		Result map[string]any `json:"result,omitempty"`
	}](w, r)
	if !ok {
		return
	}

	t, err := h.Tasks.Complete(r.Context(), urlParam(r, "id"), body.Notes, body.Result)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) FailTask(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		Reason string `json:"reason"`
	}](w, r)
	if !ok {
		return
	}

	t, err := h.Tasks.Fail(r.Context(), urlParam(r, "id"), body.Reason)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Cancel(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- Discovery ---

func (h *Handlers) FindAgentsByService(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Discovery.FindByService(r.Context(), urlParam(r, "service"))
	if err != nil {
		writeDomainError(w, err, "service not found")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent_ids": ids})
}

func (h *Handlers) TopAgentsByReputation(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	scores, err := h.Discovery.TopByReputation(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err, "rankings not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
}
