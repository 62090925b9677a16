package agent_test

import (
	"testing"

	"github.com/arbiterhq/Switchboard/internal/domain/agent"
)

func TestIdentity_ActiveAgent(t *testing.T) {
	r := &agent.Record{ID: "alice", Name: "Alice", IsAgent: true, Active: true}

	id := r.Identity()
	if !id.Exists {
		t.Fatal("active record should exist")
	}
	if !id.IsAgent {
		t.Fatal("agent record should report IsAgent")
	}
	if id.Name != "Alice" {
		t.Errorf("expected name Alice, got %q", id.Name)
	}
}

func TestIdentity_ActiveNonAgent(t *testing.T) {
	r := &agent.Record{ID: "billing-svc", Name: "Billing", IsAgent: false, Active: true}

	id := r.Identity()
	if !id.Exists {
		t.Fatal("active record should exist")
	}
	if id.IsAgent {
		t.Fatal("non-agent record must not report IsAgent")
	}
}

func TestIdentity_Deactivated(t *testing.T) {
	r := &agent.Record{ID: "alice", Name: "Alice", IsAgent: true, Active: false}

	id := r.Identity()
	if id.Exists {
		t.Fatal("deactivated record must resolve as nonexistent")
	}
	if id.IsAgent {
		t.Fatal("deactivated record must not report IsAgent")
	}
	if id.ID != "alice" {
		t.Errorf("identity keeps the id, got %q", id.ID)
	}
}
