package http

import (
	"encoding/json"
	"net/http"

	"github.com/arbiterhq/Switchboard/internal/protocol"
)

// RPCHandler serves the JSON-RPC 2.0 transcoding endpoint. The caller's
// identity arrives in the X-Agent-ID header; the dispatcher treats it as
// the authenticated sender for every send-class method.
type RPCHandler struct {
	Dispatcher *protocol.Dispatcher
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fromAgent := r.Header.Get("X-Agent-ID")
	if fromAgent == "" {
		writeJSON(w, http.StatusOK, protocol.NewError(nil, protocol.CodeInvalidRequest, "X-Agent-ID header is required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, protocol.NewError(nil, protocol.CodeInvalidRequest, "invalid JSON"))
		return
	}

	resp := h.Dispatcher.Dispatch(r.Context(), &req, fromAgent)
	writeJSON(w, http.StatusOK, resp)
}
