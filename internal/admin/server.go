// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package admin exposes a small read-only HTTP surface for operators:
// health, the live session list, and per-session playback counters. It
// never mutates a session; every write goes through the RPC surface.
package admin

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rapidaai/rialto/internal/session"
	"github.com/rapidaai/rialto/pkg/commons"
)

// Server serves the admin routes over one gin engine.
type Server struct {
	engine   *gin.Engine
	logger   commons.Logger
	registry *session.Registry
}

// New builds the admin server and registers its routes.
func New(logger commons.Logger, registry *session.Registry) *Server {
	if logger == nil {
		logger = commons.NewNoopLogger()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{engine: engine, logger: logger, registry: registry}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.healthz)
	apiv1 := s.engine.Group("/v1")
	{
		apiv1.GET("/sessions", s.listSessions)
		apiv1.GET("/sessions/:id", s.getSession)
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.registry.Snapshot()})
}

func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	if p, ok := s.registry.Get(id); ok {
		pos, _ := p.GetPosition()
		c.JSON(http.StatusOK, gin.H{
			"sessionId": id,
			"kind":      "generic",
			"state":     p.Context().State().String(),
			"position":  pos.Nanoseconds(),
			"counters":  p.Metrics().Read(),
		})
		return
	}
	if p, ok := s.registry.GetWebAudio(id); ok {
		c.JSON(http.StatusOK, gin.H{
			"sessionId": id,
			"kind":      "webaudio",
			"state":     p.State().String(),
			"delay":     p.GetBufferDelay(),
		})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Infow("admin server listening", "addr", addr)
	return s.engine.Run(addr)
}
