// Package monitor serves live diagnostics for the decision side: status,
// recent decisions, a command chart and a websocket stream. It is display
// only, except for the route planner's navigation bias input.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/guidecane/internal/httputil"
	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/monitoring"
	"github.com/banshee-data/guidecane/internal/packet"
	"github.com/banshee-data/guidecane/internal/pipeline"
	"github.com/banshee-data/guidecane/internal/steering"
	"github.com/banshee-data/guidecane/internal/version"
)

// WebServerConfig wires the server to the running components. Any source
// may be nil and is then omitted from the status.
type WebServerConfig struct {
	Address string
	// HistorySize bounds the decisions kept for /api/decisions and charts.
	HistorySize int

	LinkState func() link.LinkState
	Sender    *link.Sender
	Pipeline  *pipeline.Pipeline
	Bias      *steering.BiasInput
	// Extra contributes additional status fields, e.g. recorder counters.
	Extra func() map[string]any
	// Admin mounts debug routes (tailsql, backups) on the server's mux.
	Admin func(*http.ServeMux) error
}

// WebServer is the diagnostics HTTP server. It is also a pipeline sink.
type WebServer struct {
	cfg     WebServerConfig
	history *History
	hub     *Hub
	started time.Time
	server  *http.Server
}

// NewWebServer creates a server; call Start to listen.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	ws := &WebServer{
		cfg:     cfg,
		history: NewHistory(cfg.HistorySize),
		hub:     NewHub(),
		started: time.Now(),
	}
	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the root handler.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// History returns the decision history.
func (ws *WebServer) History() *History { return ws.history }

// Consume implements pipeline.Sink.
func (ws *WebServer) Consume(r pipeline.Record) {
	v := NewDecisionView(r)
	ws.history.Add(v)
	ws.hub.Broadcast(v)
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/decisions", ws.handleDecisions)
	mux.HandleFunc("/api/bias", ws.handleBias)
	mux.HandleFunc("/debug/charts/commands", ws.handleCommandChart)
	mux.Handle("/ws/decisions", ws.hub)
	if ws.cfg.Admin != nil {
		if err := ws.cfg.Admin(mux); err != nil {
			return nil, fmt.Errorf("attach admin routes: %w", err)
		}
	}
	return mux, nil
}

// Start serves until ctx is cancelled, then shuts down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("[Monitor] starting HTTP server on %s", ws.cfg.Address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("monitor server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	monitoring.Logf("[Monitor] shutting down HTTP server...")
	ws.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[Monitor] HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("[Monitor] HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status is the /api/status document.
type Status struct {
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Link      *link.LinkState   `json:"link,omitempty"`
	Last      *DecisionView     `json:"last_decision,omitempty"`
	Commands  CommandSummary    `json:"commands"`
	Decisions int64             `json:"decisions_seen"`
	Sender    *link.SenderStats `json:"sender,omitempty"`
	Pending   *packet.Packet    `json:"pending_packet,omitempty"`
	Pipeline  *pipeline.Stats   `json:"pipeline,omitempty"`
	NavBias   *float64          `json:"nav_bias,omitempty"`
	Clients   int               `json:"ws_clients"`
	Extra     map[string]any    `json:"extra,omitempty"`
}

func (ws *WebServer) status() Status {
	st := Status{
		Version:   version.Version,
		Uptime:    time.Since(ws.started).Round(time.Second).String(),
		Commands:  ws.history.Summary(),
		Decisions: ws.history.Total(),
		Clients:   ws.hub.Clients(),
	}
	if recent := ws.history.Recent(1); len(recent) == 1 {
		st.Last = &recent[0]
	}
	if ws.cfg.LinkState != nil {
		ls := ws.cfg.LinkState()
		st.Link = &ls
	}
	if ws.cfg.Sender != nil {
		ss := ws.cfg.Sender.Stats()
		st.Sender = &ss
		pending := ws.cfg.Sender.Pending()
		st.Pending = &pending
	}
	if ws.cfg.Pipeline != nil {
		ps := ws.cfg.Pipeline.Stats()
		st.Pipeline = &ps
	}
	if ws.cfg.Bias != nil {
		st.NavBias = ws.cfg.Bias.Current()
	}
	if ws.cfg.Extra != nil {
		st.Extra = ws.cfg.Extra()
	}
	return st
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ws.status())
}

// handleDecisions returns recent decisions, oldest first.
// Query params:
//
//	limit (optional, default 100, max history size)
func (ws *WebServer) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	httputil.WriteJSON(w, http.StatusOK, ws.history.Recent(limit))
}

type biasRequest struct {
	Bias *float64 `json:"bias"`
}

// handleBias accepts the route planner's steering preference. POST sets
// {"bias": x} with x in [-1, 1]; DELETE clears it.
func (ws *WebServer) handleBias(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Bias == nil {
		httputil.NotFound(w, "navigation bias input not enabled")
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req biasRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid body: %v", err))
			return
		}
		if req.Bias == nil {
			httputil.BadRequest(w, "missing 'bias'")
			return
		}
		if err := ws.cfg.Bias.Set(*req.Bias); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	case http.MethodDelete:
		ws.cfg.Bias.Clear()
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, biasRequest{Bias: ws.cfg.Bias.Current()})
}
