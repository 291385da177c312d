package lobby

import (
	"errors"
	"log"
	"net/http"

	"clocktower-lite/apps/server/internal/httpx"
	"clocktower-lite/replay"
	"clocktower-lite/script"
)

type HTTPHandler struct {
	lobby *Lobby
}

type setupResponse struct {
	OK    bool                  `json:"ok"`
	Tape  *replay.WireSetupTape `json:"tape,omitempty"`
	Error *replay.ReplayError   `json:"error,omitempty"`
}

func NewHTTPHandler(l *Lobby) *HTTPHandler {
	return &HTTPHandler{lobby: l}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/scripts", h.handleScripts)
	mux.HandleFunc("GET /api/tables", h.handleTables)
	mux.HandleFunc("POST /api/setup", h.handleSetup)
	mux.HandleFunc("POST /api/setup/verify", h.handleVerify)
}

func (h *HTTPHandler) handleScripts(w http.ResponseWriter, _ *http.Request) {
	catalog := h.lobby.Catalog()
	defs := make([]script.Definition, 0, len(catalog.Names()))
	for _, name := range catalog.Names() {
		if s, ok := catalog.Lookup(name); ok {
			defs = append(defs, s.Definition())
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"scripts": defs})
}

func (h *HTTPHandler) handleTables(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tables": h.lobby.ListTables()})
}

// handleSetup generates a one-off setup tape outside any table.
func (h *HTTPHandler) handleSetup(w http.ResponseWriter, r *http.Request) {
	var spec replay.SetupSpec
	if err := httpx.DecodeJSON(r, &spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if spec.BluffFallback == "" {
		spec.BluffFallback = h.lobby.GeneratorConfig().BluffFallback
	}
	tape, err := replay.GenerateSetupTape(spec)
	if err != nil {
		writeReplayError(w, err)
		return
	}
	log.Printf("[Lobby] one-off setup: script=%s residents=%d travelers=%d seed=%d",
		tape.Spec.Script, tape.Spec.Residents, tape.Spec.Travelers, tape.Spec.RNG.Seed)
	httpx.WriteJSON(w, http.StatusOK, setupResponse{OK: true, Tape: replay.ToWireSetupTape(tape)})
}

func (h *HTTPHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var wire replay.WireSetupTape
	if err := httpx.DecodeJSON(r, &wire); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := replay.VerifySetupTape(replay.FromWireSetupTape(&wire)); err != nil {
		writeReplayError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, setupResponse{OK: true})
}

func writeReplayError(w http.ResponseWriter, err error) {
	var re *replay.ReplayError
	if errors.As(err, &re) {
		httpx.WriteJSON(w, http.StatusBadRequest, setupResponse{Error: re})
		return
	}
	log.Printf("[Lobby] setup failed: %v", err)
	httpx.WriteError(w, http.StatusInternalServerError, "setup failed")
}
