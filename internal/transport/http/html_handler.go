package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"wqdash/internal/charts"
	"wqdash/internal/config"
	apiv1 "wqdash/pkg/contracts/api/v1"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 24px; }
        .panels { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
        .panel img { width: 100%; }
        #status.loading::after { content: " (loading...)"; }
        .error { padding: 10px; background-color: #f8d7da; color: #721c24; display: none; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <div class="error" id="error"></div>
    <label for="range">Time range</label>
    <select id="range">
        {{range .Ranges}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
        {{end}}
    </select>
    <a id="export" href="/api/v1/dashboard/export">Export CSV</a>
    <span id="status">{{.Phase}}</span>
    <div class="panels">
        {{range .Targets}}<div class="panel"><img id="chart-{{.}}" alt="{{.}}" src="/api/v1/dashboard/charts/{{.}}.png"></div>
        {{end}}
    </div>
    <footer>{{.Version}}</footer>
    <script src="/static/dashboard.js"></script>
</body>
</html>
`))

const dashboardScript = `const status = document.getElementById("status");
const errorBox = document.getElementById("error");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
document.getElementById("range").addEventListener("change", (e) => {
    ws.send(JSON.stringify({type: "range:set", data: {range: e.target.value}}));
});
ws.onmessage = (event) => {
    const msg = JSON.parse(event.data);
    if (msg.type === "dashboard:state") {
        status.textContent = msg.data.phase;
        status.className = msg.data.loading ? "loading" : "";
    } else if (msg.type === "chart:render") {
        const img = document.getElementById("chart-" + msg.data.target);
        if (img) { img.src = "/api/v1/dashboard/charts/" + msg.data.target + ".png?rev=" + msg.data.handle; }
    } else if (msg.type === "error") {
        errorBox.textContent = msg.data.message;
        errorBox.style.display = "block";
    }
};
`

// IndexSource supplies the data rendered on the landing page
type IndexSource interface {
	State() apiv1.StateResponse
	Ranges() []apiv1.RangeOption
}

type indexData struct {
	Title   string
	Version string
	Phase   string
	Ranges  []apiv1.RangeOption
	Targets []string
}

// ServeIndex serves the dashboard page
func ServeIndex(source IndexSource, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setPageHeaders(w)

		data := indexData{
			Title:   "Water Quality Dashboard",
			Version: config.AppName + " " + config.AppVersion,
			Phase:   source.State().Phase,
			Ranges:  source.Ranges(),
			Targets: charts.Targets(),
		}
		if err := indexTemplate.Execute(w, data); err != nil {
			logger.ErrorContext(r.Context(), "Error rendering page",
				slog.String("error", err.Error()))
		}
	}
}

// ServeScript serves the dashboard page script
func ServeScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write([]byte(dashboardScript))
}

// ServeAssets serves the pre-rendered image directory under prefix.
// Directory listings are disabled.
func ServeAssets(prefix, dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.StripPrefix(prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Clean("/" + r.URL.Path)
		if name == "/" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	}))
}

func setPageHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}
