package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/morezero/native-share/pkg/gallery"
	"github.com/morezero/native-share/pkg/manifest"
)

// HealthChecks reports each dependency.
type HealthChecks struct {
	Comms    bool  `json:"comms"`
	UILoop   bool  `json:"uiLoop"`
	Gallery  bool  `json:"gallery"`
	Database *bool `json:"database,omitempty"`
}

// HealthOutput is the /health body.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Uptime    string       `json:"uptime,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// Router returns the HTTP handler: health, readiness, metrics, manifest and
// the status page.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome())
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/manifest", s.handleManifest)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// Health checks COMMS, the UI loop, and the gallery backend.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	checks := HealthChecks{
		Comms:  s.nc != nil && s.nc.IsConnected(),
		UILoop: s.loop.Running(),
	}
	_, _, err := s.store.List(ctx, 1)
	checks.Gallery = err == nil
	if s.pool != nil {
		ok := s.pool.Ping(ctx) == nil
		checks.Database = &ok
	}

	status := "healthy"
	if !checks.Comms || !checks.UILoop || !checks.Gallery || (checks.Database != nil && !*checks.Database) {
		status = "unhealthy"
	}
	out := &HealthOutput{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !s.started.IsZero() {
		out.Uptime = time.Since(s.started).Truncate(time.Second).String()
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	h := s.Health(ctx)
	w.Header().Set("Content-Type", "application/json")
	if h.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(h)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	if !s.ready.Load() {
		status = "starting"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	if err := json.NewEncoder(w).Encode(s.manifest); err != nil {
		slog.Error(fmt.Sprintf("%s - manifest json encode: %v", logPrefix, err))
	}
}

// homePageTemplate is the HTML for the status page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Native Share</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>{{.Manifest.Name}} <small>v{{.Manifest.Version}}</small></h1>
  <p class="meta">{{.Manifest.Description}}</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>COMMS: {{if .Health.Checks.Comms}}<span class="stat">OK</span>{{else}}<span class="error">Disconnected</span>{{end}}</p>
    <p>UI loop: {{if .Health.Checks.UILoop}}<span class="stat">Running</span>{{else}}<span class="error">Stopped</span>{{end}}</p>
    <p>Gallery ({{.Backend}}): {{if .Health.Checks.Gallery}}<span class="stat">OK</span>{{else}}<span class="error">Failed</span>{{end}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Channel</h2>
    <table>
      <tr><th>Calls</th><td>{{.Manifest.Subjects.Channel}}</td></tr>
      <tr><th>Manifest</th><td>{{.Manifest.Subjects.Manifest}}</td></tr>
      <tr><th>Share sheet</th><td>{{.Manifest.Subjects.Sheet}}</td></tr>
      <tr><th>Permission</th><td>{{.Manifest.Subjects.Permission}}</td></tr>
      <tr><th>Saved events</th><td>{{.Manifest.Subjects.SavedEvent}}</td></tr>
    </table>
    <table>
      <thead><tr><th>Method</th><th>Arguments</th><th>Returns</th><th>Failure codes</th></tr></thead>
      <tbody>
        {{range .Methods}}
        <tr>
          <td>{{.Name}}</td>
          <td>{{range .Method.Arguments}}{{.Name}}: {{.Type}} {{end}}</td>
          <td>{{.Method.Returns}}</td>
          <td>{{range .Method.FailureCodes}}{{.}} {{end}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
  </section>

  <section>
    <h2>Recent assets</h2>
    {{if .AssetsError}}
    <p class="error">Could not load gallery contents: {{.AssetsError}}</p>
    {{else}}
    <p>Total assets: <span class="stat">{{.TotalAssets}}</span></p>
    {{if not .Assets}}
    <p>No images saved yet.</p>
    {{else}}
    <table>
      <thead><tr><th>ID</th><th>Source</th><th>Format</th><th>Size</th><th>Bytes</th><th>Saved</th></tr></thead>
      <tbody>
        {{range .Assets}}
        <tr>
          <td>{{.ID}}</td>
          <td>{{.SourcePath}}</td>
          <td>{{.Format}}</td>
          <td>{{.Width}}×{{.Height}}</td>
          <td>{{.ByteSize}}</td>
          <td>{{.Created.Format "2006-01-02 15:04:05"}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
    {{end}}
  </section>
</body>
</html>
`

type methodRow struct {
	Name   string
	Method manifest.Method
}

// homeData is the data passed to the home page template.
type homeData struct {
	Manifest    *manifest.Manifest
	Methods     []methodRow
	Health      *HealthOutput
	Backend     string
	Assets      []gallery.AssetRecord
	TotalAssets int
	AssetsError string
}

// handleHome returns an HTTP handler for the status page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Manifest: s.manifest,
			Health:   s.Health(ctx),
			Backend:  s.store.Backend(),
		}
		for _, name := range s.manifest.MethodNames() {
			data.Methods = append(data.Methods, methodRow{Name: name, Method: s.manifest.Methods[name]})
		}

		assets, total, err := s.store.List(ctx, 20)
		if err != nil {
			data.AssetsError = err.Error()
		} else {
			data.Assets, data.TotalAssets = assets, total
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
