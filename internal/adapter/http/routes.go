package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, rpc *RPCHandler) {
	// JSON-RPC transcoding endpoint.
	r.Method(http.MethodPost, "/rpc", rpc)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Agent directory
		r.Post("/agents", h.RegisterAgent)
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)
		r.Post("/agents/{id}/deactivate", h.DeactivateAgent)
		r.Get("/agents/{id}/capabilities", h.GetAgentCapabilities)

		// Mailboxes (nested under agents)
		r.Get("/agents/{id}/messages", h.ListMessages)
		r.Get("/agents/{id}/messages/count", h.CountMessages)
		r.Post("/agents/{id}/messages/{messageID}/ack", h.AcknowledgeMessage)
		r.Get("/agents/{id}/tasks", h.ListAgentTasks)

		// Messages
		r.Post("/messages", h.SendMessage)

		// Task delegation
		r.Post("/tasks", h.DelegateTask)
		r.Get("/tasks/{id}", h.GetTask)
		r.Post("/tasks/{id}/accept", h.AcceptTask)
		r.Post("/tasks/{id}/reject", h.RejectTask)
		r.Post("/tasks/{id}/update", h.UpdateTask)
		r.Post("/tasks/{id}/complete", h.CompleteTask)
		r.Post("/tasks/{id}/fail", h.FailTask)
		r.Post("/tasks/{id}/cancel", h.CancelTask)

		// Discovery
		r.Get("/discovery/services/{service}", h.FindAgentsByService)
		r.Get("/discovery/top", h.TopAgentsByReputation)
	})
}
