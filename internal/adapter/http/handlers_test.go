package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/agent"
	"github.com/arbiterhq/Switchboard/internal/domain/message"
	"github.com/arbiterhq/Switchboard/internal/domain/task"
	"github.com/arbiterhq/Switchboard/internal/ledger"
	"github.com/arbiterhq/Switchboard/internal/mailbox"
	"github.com/arbiterhq/Switchboard/internal/protocol"
	"github.com/arbiterhq/Switchboard/internal/service"
)

// memDirectory is an in-memory agent directory implementing the resolver,
// registry, and admin ports.
type memDirectory struct {
	records map[string]*agent.Record
}

func newMemDirectory(ids ...string) *memDirectory {
	d := &memDirectory{records: make(map[string]*agent.Record)}
	for _, id := range ids {
		d.records[id] = &agent.Record{ID: id, Name: id, IsAgent: true, Active: true}
	}
	return d
}

func (d *memDirectory) Resolve(_ context.Context, agentID string) (agent.Identity, error) {
	rec, ok := d.records[agentID]
	if !ok {
		return agent.Identity{ID: agentID}, nil
	}
	return rec.Identity(), nil
}

func (d *memDirectory) Lookup(_ context.Context, agentID string) (*agent.Capabilities, error) {
	rec, ok := d.records[agentID]
	if !ok || !rec.Active {
		return nil, domain.ErrNotFound
	}
	caps := rec.Capabilities
	return &caps, nil
}

func (d *memDirectory) FindByService(_ context.Context, svc string) ([]string, error) {
	var ids []string
	for _, rec := range d.records {
		if !rec.Active {
			continue
		}
		for _, s := range rec.Capabilities.Services {
			if s == svc {
				ids = append(ids, rec.ID)
			}
		}
	}
	return ids, nil
}

func (d *memDirectory) Register(_ context.Context, req agent.RegisterRequest) (*agent.Record, error) {
	if _, ok := d.records[req.ID]; ok {
		return nil, domain.ErrConflict
	}
	rec := &agent.Record{
		ID: req.ID, Name: req.Name, IsAgent: true, Active: true,
		Capabilities: agent.Capabilities{
			Services: req.Services,
			Skills:   req.Skills,
			Pricing:  req.Pricing,
			Status:   agent.StatusAvailable,
		},
	}
	d.records[req.ID] = rec
	return rec, nil
}

func (d *memDirectory) Get(_ context.Context, agentID string) (*agent.Record, error) {
	rec, ok := d.records[agentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (d *memDirectory) List(_ context.Context) ([]agent.Record, error) {
	var out []agent.Record
	for _, rec := range d.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (d *memDirectory) Deactivate(_ context.Context, agentID string) error {
	rec, ok := d.records[agentID]
	if !ok || !rec.Active {
		return domain.ErrNotFound
	}
	rec.Active = false
	return nil
}

// newTestRouter wires a full in-memory stack behind the real routes.
func newTestRouter(t *testing.T) (chi.Router, *memDirectory) {
	t.Helper()

	dir := newMemDirectory("alice", "bob")
	bus := service.NewBusService(mailbox.NewStore(100), dir)
	tasks := service.NewDelegationService(ledger.NewLedger(), bus)
	discovery := service.NewDiscoveryService(dir)
	registrar := service.NewRegistrarService(dir)

	h := &Handlers{Bus: bus, Tasks: tasks, Discovery: discovery, Registrar: registrar}
	rpc := &RPCHandler{Dispatcher: protocol.NewDispatcher(bus, discovery)}

	r := chi.NewRouter()
	MountRoutes(r, h, rpc)
	return r, dir
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRegisterAgent(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/agents", agent.RegisterRequest{
		ID:       "carol",
		Name:     "Carol",
		Services: []string{"translation"},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := decodeBody[agent.Record](t, rec)
	if got.ID != "carol" || !got.Active {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Duplicate registration conflicts.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/agents", agent.RegisterRequest{ID: "carol", Name: "Carol"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", rec.Code)
	}
}

func TestRegisterAgentMissingFields(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/agents", agent.RegisterRequest{Name: "No ID"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendListAckMessage(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/messages", map[string]any{
		"from_agent_id": "alice",
		"to_agent_id":   "bob",
		"message_type":  "service_request",
		"content":       "translate this",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d, body %s", rec.Code, rec.Body.String())
	}
	sent := decodeBody[message.Envelope](t, rec)
	if sent.ID == "" {
		t.Fatal("expected assigned message id")
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/agents/bob/messages", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	msgs := decodeBody[[]message.Envelope](t, rec)
	if len(msgs) != 1 || msgs[0].ID != sent.ID {
		t.Fatalf("unexpected listing: %+v", msgs)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/agents/bob/messages/count", nil, nil)
	if got := decodeBody[map[string]int](t, rec); got["count"] != 1 {
		t.Fatalf("count = %d, want 1", got["count"])
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/agents/bob/messages/"+sent.ID+"/ack", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ack status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Ack again: gone.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/agents/bob/messages/"+sent.ID+"/ack", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double ack, got %d", rec.Code)
	}
}

func TestSendToUnknownAgent(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/messages", map[string]any{
		"from_agent_id": "alice",
		"to_agent_id":   "ghost",
		"message_type":  "ping",
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown recipient, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTaskLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks", task.DelegateRequest{
		FromAgent:   "alice",
		ToAgent:     "bob",
		Name:        "translate",
		Description: "translate the doc",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("delegate status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[struct {
		Task task.Task `json:"task"`
	}](t, rec)
	taskID := created.Task.ID
	if taskID == "" || created.Task.Status != task.StatusPending {
		t.Fatalf("unexpected task: %+v", created.Task)
	}

	asBob := map[string]string{"X-Agent-ID": "bob"}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+taskID+"/accept", nil, asBob)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+taskID+"/update", map[string]any{
		"note": "halfway there",
	}, asBob)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+taskID+"/complete", map[string]any{
		"notes": "done",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", rec.Code, rec.Body.String())
	}
	completed := decodeBody[task.Task](t, rec)
	if completed.Status != task.StatusCompleted {
		t.Fatalf("status = %s, want completed", completed.Status)
	}

	// Completed is terminal.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/tasks/"+taskID+"/cancel", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 cancelling a completed task, got %d", rec.Code)
	}
}

func TestAcceptRequiresAgentHeader(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/tasks/t-1/accept", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without X-Agent-ID, got %d", rec.Code)
	}
}

func TestGetUnknownTask(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/tasks/no-such-task", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeactivateAgent(t *testing.T) {
	r, dir := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/agents/bob/deactivate", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d", rec.Code)
	}
	if dir.records["bob"].Active {
		t.Fatal("bob should be inactive")
	}

	// Sends to a deactivated agent resolve as unknown.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/messages", map[string]any{
		"from_agent_id": "alice",
		"to_agent_id":   "bob",
		"message_type":  "ping",
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 sending to deactivated agent, got %d", rec.Code)
	}
}

func TestFindAgentsByService(t *testing.T) {
	r, dir := newTestRouter(t)
	dir.records["alice"].Capabilities.Services = []string{"translation"}

	rec := doJSON(t, r, http.MethodGet, "/api/v1/discovery/services/translation", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody[map[string][]string](t, rec)
	if len(got["agent_ids"]) != 1 || got["agent_ids"][0] != "alice" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestTopByReputationNotConfigured(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/discovery/top?limit=3", nil, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a reputation backend, got %d", rec.Code)
	}
}

func TestTopByReputationBadLimit(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, limit := range []string{"zero", "-1", "0"} {
		rec := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/discovery/top?limit=%s", limit), nil, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit %q: expected 400, got %d", limit, rec.Code)
		}
	}
}
