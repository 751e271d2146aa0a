// Package api exposes the wedge's state and its start/stop control over a
// local HTTP and WebSocket interface.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/SimplyPrint/nfc-wedge/internal/core"
	"github.com/SimplyPrint/nfc-wedge/internal/logging"
	"github.com/SimplyPrint/nfc-wedge/internal/loop"
	"github.com/SimplyPrint/nfc-wedge/internal/status"
)

// Version information (set via ldflags in production builds)
var (
	Version   = ""
	BuildTime = ""
	GitCommit = ""
)

func init() {
	if Version != "" {
		return
	}
	Version = "dev"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	var revision string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			BuildTime = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision != "" {
		GitCommit = revision
		short := revision
		if len(short) > 7 {
			short = short[:7]
		}
		Version = "dev-" + short
		if modified {
			Version += "-dirty"
		}
	}
}

// Controller is the read loop as seen by the API.
type Controller interface {
	Active() bool
	Toggle() bool
	SetActive(active bool) bool
	Stats() loop.Stats
}

var (
	stateMu         sync.RWMutex
	controller      Controller
	reporter        *status.Reporter
	statusLog       *status.Log
	shutdownHandler func()

	// listReaders is swapped out in tests.
	listReaders = core.ListReaders
)

// SetController attaches the read loop.
func SetController(c Controller) {
	stateMu.Lock()
	defer stateMu.Unlock()
	controller = c
}

// SetStatus attaches the status reporter and the operator log.
func SetStatus(r *status.Reporter, l *status.Log) {
	stateMu.Lock()
	defer stateMu.Unlock()
	reporter = r
	statusLog = l
}

// SetShutdownHandler sets the callback for shutdown requests
func SetShutdownHandler(handler func()) {
	stateMu.Lock()
	defer stateMu.Unlock()
	shutdownHandler = handler
}

func getController() Controller {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return controller
}

// NewMux constructs and returns the HTTP mux for the API.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/status", corsMiddleware(handleStatus))
	mux.HandleFunc("/v1/toggle", corsMiddleware(handleToggle))
	mux.HandleFunc("/v1/readers", corsMiddleware(handleListReaders))
	mux.HandleFunc("/v1/version", corsMiddleware(handleVersion))
	mux.HandleFunc("/v1/health", corsMiddleware(handleHealth))
	mux.HandleFunc("/v1/logs", corsMiddleware(handleLogs))
	mux.HandleFunc("/v1/crashes", corsMiddleware(handleCrashes))
	mux.HandleFunc("/v1/shutdown", corsMiddleware(handleShutdown))
	return mux
}

// recoveryMiddleware catches panics and logs them to crash files.
func recoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			stack := debug.Stack()
			where := fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)

			logging.CapturePanic(rec, stack, where)
			logging.Error(logging.CatHTTP, "PANIC in "+where, map[string]any{
				"panic":  fmt.Sprintf("%v", rec),
				"stack":  string(stack),
				"method": r.Method,
				"path":   r.URL.Path,
			})

			crashFile, err := logging.WriteCrashLog(rec, stack)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write crash log: %v\n", err)
				crashFile = ""
			}

			respondJSON(w, http.StatusInternalServerError, map[string]string{
				"error":     "internal server error",
				"crashFile": crashFile,
			})
		}()
		next(w, r)
	}
}

// corsMiddleware adds CORS headers to allow browser access from any origin.
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		recoveryMiddleware(next)(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

// StatusResponse is the body of GET /v1/status and the WebSocket status reply.
type StatusResponse struct {
	Active bool          `json:"active"`
	Status string        `json:"status"`
	Lines  []status.Line `json:"lines,omitempty"`
	Stats  *loop.Stats   `json:"stats,omitempty"`
}

func currentStatus(lineLimit int) StatusResponse {
	stateMu.RLock()
	c, rep, log := controller, reporter, statusLog
	stateMu.RUnlock()

	var resp StatusResponse
	if c != nil {
		stats := c.Stats()
		resp.Active = stats.Active
		resp.Stats = &stats
	}
	if rep != nil {
		resp.Status = rep.Last()
	}
	if log != nil && lineLimit > 0 {
		resp.Lines = log.Lines(lineLimit)
	}
	return resp
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		stateMu.RLock()
		log := statusLog
		stateMu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if log != nil {
			io.WriteString(w, log.Text())
		}
		return
	}
	limit := parseLimit(r, "lines", 50, 500)
	respondJSON(w, http.StatusOK, currentStatus(limit))
}

// toggleRequest optionally forces a state instead of flipping it.
type toggleRequest struct {
	Active *bool `json:"active"`
}

// applyToggle flips the loop, or sets it when req.Active is given.
func applyToggle(c Controller, req toggleRequest) bool {
	if req.Active != nil {
		c.SetActive(*req.Active)
		return *req.Active
	}
	return c.Toggle()
}

func handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	c := getController()
	if c == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "read loop not running",
		})
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}

	active := applyToggle(c, req)
	logging.Info(logging.CatHTTP, "Read loop toggled via API", map[string]any{
		"active": active,
	})
	respondJSON(w, http.StatusOK, map[string]bool{
		"active": active,
	})
}

func handleListReaders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, listReaders())
}

func versionInfo() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, versionInfo())
}

func healthInfo() map[string]interface{} {
	readers := listReaders()
	info := map[string]interface{}{
		"status":      "ok",
		"readerCount": len(readers),
	}
	if c := getController(); c != nil {
		info["active"] = c.Active()
	}
	return info
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, healthInfo())
}

func handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	stateMu.RLock()
	handler := shutdownHandler
	stateMu.RUnlock()

	if handler == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "shutdown not available",
		})
		return
	}

	logging.Info(logging.CatSystem, "Shutdown requested via API", nil)
	respondJSON(w, http.StatusOK, map[string]string{
		"success": "shutting down",
	})

	// After the response is written.
	go handler()
}

func handleLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		limit := parseLimit(r, "limit", 100, 1000)

		var minLevel *logging.Level
		if lvl, ok := logging.ParseLevel(query.Get("level")); ok {
			minLevel = &lvl
		}

		var category *logging.Category
		if catStr := query.Get("category"); catStr != "" {
			c := logging.Category(catStr)
			category = &c
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"entries": logging.Get().GetEntries(limit, minLevel, category),
			"stats":   logging.Get().Stats(),
		})

	case http.MethodDelete:
		logging.Get().Clear()
		respondJSON(w, http.StatusOK, map[string]string{
			"success": "logs cleared",
		})

	default:
		methodNotAllowed(w)
	}
}

func handleCrashes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	if filename := r.URL.Query().Get("file"); filename != "" {
		content, err := logging.ReadCrashLog(filename)
		if err != nil {
			respondJSON(w, http.StatusNotFound, map[string]string{
				"error": "crash log not found: " + err.Error(),
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"filename": filename,
			"content":  content,
		})
		return
	}

	logs, err := logging.GetCrashLogs(parseLimit(r, "limit", 20, 100))
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list crash logs: " + err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"crashes":  logs,
		"crashDir": logging.CrashLogDir(),
	})
}

// parseLimit reads a positive integer query parameter, clamped to max.
func parseLimit(r *http.Request, name string, def, max int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // header already sent
}
