package ledger

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clocktower-lite/apps/server/internal/auth"
	"clocktower-lite/apps/server/internal/httpx"

	"golang.org/x/text/language"
)

const maxImportBytes = 8 << 20

type HTTPHandler struct {
	auth   auth.Service
	ledger Service
}

type statsResponse struct {
	PlayerStats
	Report string `json:"report"`
}

func NewHTTPHandler(authService auth.Service, ledgerService Service) *HTTPHandler {
	return &HTTPHandler{auth: authService, ledger: ledgerService}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/matches/recent", h.handleRecent)
	mux.HandleFunc("GET /api/matches/export", h.handleExport)
	mux.HandleFunc("POST /api/matches/import", h.handleImport)
	mux.HandleFunc("GET /api/players/search", h.handleSearch)
	mux.HandleFunc("GET /api/players/{username}/stats", h.handleStats)
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	matches, err := h.ledger.RecentMatches(ctx, parseLimit(r.URL.Query().Get("limit"), DefaultRecentLimit))
	if err != nil {
		log.Printf("[Ledger] recent matches failed: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "query recent matches failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (h *HTTPHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	q := r.URL.Query()
	names, err := h.ledger.SearchUsernames(ctx, q.Get("q"), parseLimit(q.Get("limit"), MaxSearchResults))
	if err != nil {
		log.Printf("[Ledger] search usernames failed: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "search failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"usernames": names})
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing username")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rows, err := h.ledger.PlayerRows(ctx, username)
	if err != nil {
		log.Printf("[Ledger] player rows failed: user=%s err=%v", username, err)
		httpx.WriteError(w, http.StatusInternalServerError, "query player failed")
		return
	}
	if len(rows) == 0 {
		httpx.WriteError(w, http.StatusNotFound, "no data for this player")
		return
	}

	q := r.URL.Query()
	stats := ComputeStats(username, rows, q.Get("script"))
	httpx.WriteJSON(w, http.StatusOK, statsResponse{
		PlayerStats: stats,
		Report:      stats.Report(reportLanguage(q.Get("lang"), r.Header.Get("Accept-Language"))),
	})
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="match_history.csv"`)
	if err := ExportCSV(ctx, w, h.ledger); err != nil {
		log.Printf("[Ledger] export failed: %v", err)
	}
}

func (h *HTTPHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	_, name, ok := h.auth.ResolveSession(httpx.BearerToken(r))
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	log.Printf("[Ledger] legacy import requested by %s", name)

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	sum, err := ImportCSV(ctx, http.MaxBytesReader(w, r.Body, maxImportBytes), h.ledger)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sum)
}

func parseLimit(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > 500 {
		return 500
	}
	return n
}

var reportLanguages = language.NewMatcher([]language.Tag{language.English, language.German, language.French})

// reportLanguage prefers an explicit lang query value over Accept-Language.
func reportLanguage(explicit, accept string) language.Tag {
	if explicit != "" {
		if tag, err := language.Parse(explicit); err == nil {
			return tag
		}
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	tag, _, _ := reportLanguages.Match(tags...)
	return tag
}
