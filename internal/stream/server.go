package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cxd309/intersection-sim/internal/engine"
)

// Source produces snapshots. *engine.Engine satisfies it.
type Source interface {
	Snapshot() engine.Snapshot
}

// Server publishes snapshots of a Source.
type Server struct {
	hub      *Hub
	source   Source
	interval time.Duration
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewServer returns a Server pushing a snapshot every interval.
func NewServer(source Source, interval time.Duration, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "stream")
	return &Server{
		hub:      NewHub(log),
		source:   source,
		interval: interval,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:      log,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Handler routes /ws, /snapshot and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/snapshot", s.serveSnapshot)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run starts the hub and the publish loop and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) {
	go s.hub.Run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.Clients() == 0 {
				continue
			}
			msg, err := json.Marshal(s.source.Snapshot())
			if err != nil {
				s.log.WithError(err).Error("encoding snapshot")
				continue
			}
			if !s.hub.Broadcast(msg) {
				s.log.Debug("stream backed up, snapshot skipped")
			}
		}
	}
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.WithField("addr", addr).Info("snapshot feed listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) serveSnapshot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Snapshot()); err != nil {
		s.log.WithError(err).Warn("writing snapshot")
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	// The first frame is the current state so clients render immediately.
	if msg, err := json.Marshal(s.source.Snapshot()); err == nil {
		c.send <- msg
	}
	if !s.hub.add(c) {
		close(c.send)
		conn.Close()
		return
	}
	go c.writer(s.log)
	go c.reader(s.hub)
}
