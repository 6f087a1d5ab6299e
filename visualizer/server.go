// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package visualizer serves the execution-plan dashboard. The
// orchestration engine pushes snapshots to POST /api/display; connected
// browsers receive each snapshot over a websocket and render the task
// graph with live status colors.
package visualizer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/latch/dag"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server holds the latest snapshot and fans it out to websocket clients.
//
// Thread Safety:
//
//	Safe for concurrent use. Snapshot state and the client set are
//	guarded by separate mutexes.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.RWMutex
	snapshot   *dag.Snapshot
	receivedAt time.Time
	received   int

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

// NewServer creates a visualizer server. A nil logger means slog.Default().
func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Router builds the Gin engine with all routes registered.
//
// Endpoints:
//
//	POST /api/display - Accept a snapshot from the engine
//	GET  /api/state   - Return the latest snapshot
//	GET  /api/health  - Liveness check
//	GET  /ws          - Websocket feed of incoming snapshots
//	GET  /            - Dashboard page
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/api/display", s.handleDisplay)
	router.GET("/api/state", s.handleState)
	router.GET("/api/health", s.handleHealth)
	router.GET("/ws", s.handleWebSocket)
	router.GET("/", s.handleIndex)

	return router
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("visualizer listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleDisplay(c *gin.Context) {
	var snapshot dag.Snapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid snapshot: " + err.Error()})
		return
	}

	if limit := s.cfg.HistoryLimit; limit > 0 && len(snapshot.Metadata.ExecutionHistory) > limit {
		snapshot.Metadata.ExecutionHistory =
			snapshot.Metadata.ExecutionHistory[len(snapshot.Metadata.ExecutionHistory)-limit:]
	}

	s.mu.Lock()
	s.snapshot = &snapshot
	s.receivedAt = time.Now()
	s.received++
	count := s.received
	s.mu.Unlock()

	s.logger.Debug("snapshot received",
		slog.Int("nodes", snapshot.Metadata.TotalNodes),
		slog.Int("edges", snapshot.Metadata.TotalEdges),
		slog.Int("total_received", count),
	)

	s.broadcast(&snapshot)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleState(c *gin.Context) {
	s.mu.RLock()
	snapshot := s.snapshot
	receivedAt := s.receivedAt
	s.mu.RUnlock()

	if snapshot == nil {
		c.JSON(http.StatusOK, gin.H{"status": "empty"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot":    snapshot,
		"received_at": receivedAt,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.RLock()
	received := s.received
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"snapshots_received": received,
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade the websocket", slog.Any("error", err))
		return
	}

	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	// Register and replay under the client lock. Broadcast writes also hold
	// it, so only one goroutine ever writes to a connection at a time.
	s.clientsMu.Lock()
	s.clients[ws] = struct{}{}
	if snapshot != nil {
		if err := ws.WriteJSON(snapshot); err != nil {
			ws.Close()
			delete(s.clients, ws)
			s.clientsMu.Unlock()
			return
		}
	}
	s.clientsMu.Unlock()
	s.logger.Info("websocket client connected")

	// Drain reads until the client goes away. The feed is one-way.
	go func() {
		defer s.dropClient(ws)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				s.logger.Info("websocket client disconnected", slog.String("reason", err.Error()))
				return
			}
		}
	}()
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

func (s *Server) broadcast(snapshot *dag.Snapshot) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for ws := range s.clients {
		if err := ws.WriteJSON(snapshot); err != nil {
			s.logger.Warn("failed to write websocket JSON", slog.Any("error", err))
			ws.Close()
			delete(s.clients, ws)
		}
	}
}

func (s *Server) dropClient(ws *websocket.Conn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	ws.Close()
	delete(s.clients, ws)
}
