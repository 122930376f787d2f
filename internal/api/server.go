package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/config"
	"github.com/bryanchriswhite/Silhouette/internal/crop"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/bryanchriswhite/Silhouette/internal/output"
	"github.com/bryanchriswhite/Silhouette/internal/playback"
	"github.com/bryanchriswhite/Silhouette/internal/plugin"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server represents the HTTP API server
type Server struct {
	router     *mux.Router
	plugin     *plugin.Plugin
	controller *playback.Controller
	configMgr  *config.Manager
	mjpeg      *output.MJPEGOutput
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer creates a new API server. mjpeg may be nil when frames go to the
// X11 overlay only.
func NewServer(p *plugin.Plugin, configMgr *config.Manager, mjpeg *output.MJPEGOutput) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		plugin:     p,
		controller: p.Controller(),
		configMgr:  configMgr,
		mjpeg:      mjpeg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Playback
	api.HandleFunc("/playback", s.handleGetPlayback).Methods("GET")
	api.HandleFunc("/playback/toggle", s.handleToggle).Methods("POST")
	api.HandleFunc("/playback/start", s.handleStart).Methods("POST")
	api.HandleFunc("/playback/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/playback/events", s.handleEvents)

	// Geometry
	api.HandleFunc("/crop", s.handleCrop).Methods("GET")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	api.HandleFunc("/plugin", s.handlePlugin).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Preview stream
	if s.mjpeg != nil {
		s.router.HandleFunc("/stream", s.mjpeg.GetHTTPHandler())
		s.router.HandleFunc("/stats", s.mjpeg.GetStatsHandler())
		s.router.HandleFunc("/viewer", s.mjpeg.GetViewerHandler())
	}

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the root handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithComponent("api").Info().Int("port", port).Msg("Starting server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Error().
			Err(err).
			Int("status", status).
			Msg("Failed to encode response")
	}
}

// HTTP Handlers

func (s *Server) handleGetPlayback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	// the session must outlive the request
	s.controller.Toggle(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, s.controller.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	err := s.controller.Start(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, playback.ErrBusy), errors.Is(err, playback.ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusAccepted, s.controller.Status())
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.controller.Stop()
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.controller.Subscribe()
	defer s.controller.Unsubscribe(events)

	// Send the current state first
	if err := conn.WriteJSON(s.controller.Status()); err != nil {
		log.Debug().Err(err).Msg("WebSocket write failed")
		return
	}

	// Reads only detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-closed:
			return
		}
	}
}

// cropResponse is a crop.Rect with JSON names
type cropResponse struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	q := r.URL.Query()

	parse := func(name string, def float64) (float64, error) {
		raw := q.Get(name)
		if raw == "" {
			return def, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid %s: %q", name, raw)
		}
		return v, nil
	}

	var vals [4]float64
	defs := [4]float64{0, 0, cfg.Render.AnchorX, cfg.Render.AnchorY}
	for i, name := range []string{"width", "height", "anchor_x", "anchor_y"} {
		v, err := parse(name, defs[i])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vals[i] = v
	}

	c := crop.Cover(
		crop.Size{Width: float64(cfg.Video.Width), Height: float64(cfg.Video.Height)},
		crop.Rect{W: vals[0], H: vals[1]},
		crop.Anchor{X: vals[2], Y: vals[3]},
	)
	writeJSON(w, http.StatusOK, cropResponse{X: c.X, Y: c.Y, Width: c.W, Height: c.H})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.configMgr.Update(cfg); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalid) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handlePlugin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meta":   s.plugin.Meta,
		"active": s.plugin.Active(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.plugin.Meta.Version,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(indexHTML))
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api") {
		http.NotFound(w, r)
		return
	}
	http.Error(w, "unknown endpoint", http.StatusNotFound)
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Silhouette</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Ubuntu, sans-serif;
            max-width: 800px;
            margin: 50px auto;
            padding: 20px;
            background: #f5f5f5;
        }
        .container {
            background: white;
            padding: 30px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        h1 { color: #333; margin-top: 0; }
        #state {
            padding: 10px;
            background: #e8f5e9;
            border-left: 4px solid #4caf50;
            margin: 20px 0;
            font-family: 'Courier New', monospace;
        }
        button { padding: 8px 16px; font-size: 14px; }
        a { color: #1976d2; text-decoration: none; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Silhouette</h1>
        <div id="state">connecting...</div>
        <button onclick="fetch('/api/playback/toggle', {method: 'POST'})">Toggle</button>
        <h3>API Endpoints:</h3>
        <ul>
            <li><a href="/api/health">/api/health</a></li>
            <li><a href="/api/playback">/api/playback</a></li>
            <li><a href="/api/crop?width=1920&height=1080">/api/crop</a></li>
            <li><a href="/api/config">/api/config</a></li>
            <li><a href="/viewer">/viewer</a> (MJPEG output only)</li>
        </ul>
    </div>
    <script>
        const state = document.getElementById('state');
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/playback/events');
        ws.onmessage = (msg) => {
            const ev = JSON.parse(msg.data);
            state.textContent = ev.state + (ev.session_id ? ' (' + ev.session_id + ')' : '') + (ev.error ? ': ' + ev.error : '');
        };
        ws.onclose = () => { state.textContent = 'disconnected'; };
    </script>
</body>
</html>`
