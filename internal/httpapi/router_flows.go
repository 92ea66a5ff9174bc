package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type flowItem struct {
	UserID        int64  `json:"user_id"`
	Flow          string `json:"flow"`
	Step          string `json:"step"`
	UpdatedAtUnix int64  `json:"updated_at_unix"`
}

// handleFlows reports active flow counts by kind and the most recently
// touched states. ?limit= caps the list (default 50, max 500).
func (r *router) handleFlows(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(req.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, 500)
	}

	counts, err := r.deps.Store.CountActiveFlows(req.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	summaries, err := r.deps.Store.ListWorkflowStates(req.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	active := map[string]int{}
	total := 0
	for flow, count := range counts {
		active[string(flow)] = count
		total += count
	}
	items := make([]flowItem, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, flowItem{
			UserID:        summary.UserID,
			Flow:          string(summary.Flow),
			Step:          string(summary.Step),
			UpdatedAtUnix: summary.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active": active,
		"total":  total,
		"items":  items,
		"count":  len(items),
	})
}
