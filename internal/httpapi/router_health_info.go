package httpapi

import (
	"html/template"
	"net/http"
	"strings"
)

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Status</title>
</head>
<body>
  <h1>Application Started</h1>
  <p>Server is listening on {{.Addr}}</p>
</body>
</html>
`))

func (r *router) handleStatusPage(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := statusPage.Execute(w, map[string]string{"Addr": r.deps.Config.HTTPAddr}); err != nil && r.deps.Logger != nil {
		r.deps.Logger.Error("render status page failed", "error", err)
	}
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	writeJSON(w, http.StatusOK, r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter))
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	version := strings.TrimSpace(r.deps.Version)
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "intakebot",
		"version":     version,
		"environment": r.deps.Config.Environment,
		"telegram":    r.deps.Config.TelegramEnabled(),
		"jira":        r.deps.Config.JiraEnabled(),
	})
}
