// Package server exposes run status and results over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"shelfscan/internal/app"
	"shelfscan/internal/logging"
	"shelfscan/internal/output"
	"shelfscan/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// Runner is the part of the pipeline the server drives.
type Runner interface {
	ProcessAll(ctx context.Context, reprocess bool) (pipeline.Summary, error)
	Output() *output.Map
}

// Server wires HTTP handlers to a runner and a scheduler.
type Server struct {
	runner Runner
	sched  *app.Scheduler
}

// New creates a server.
func New(runner Runner, sched *app.Scheduler) *Server {
	return &Server{runner: runner, sched: sched}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.setupRoutes(r)
	return r
}

func (s *Server) setupRoutes(r *gin.Engine) {
	r.GET("/status", s.statusHandler)
	r.GET("/output", s.outputHandler)
	r.POST("/process", s.processHandler)
}

func (s *Server) statusHandler(c *gin.Context) {
	resp := gin.H{
		"running": false,
		"entries": s.runner.Output().Len(),
	}
	if job := s.sched.Current(); job != nil {
		resp["job"] = job.Name
		resp["running"] = job.Alive()
		resp["elapsed"] = job.Elapsed()
		if err := job.Err(); err != nil {
			resp["error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) outputHandler(c *gin.Context) {
	data, err := output.Marshal(s.runner.Output())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) processHandler(c *gin.Context) {
	reprocess, err := strconv.ParseBool(c.DefaultQuery("reprocess", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reprocess must be a boolean"})
		return
	}

	job, err := s.sched.Launch("process", func(ctx context.Context) error {
		_, err := s.runner.ProcessAll(ctx, reprocess)
		return err
	})
	if errors.Is(err, app.ErrJobActive) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go app.Watch(context.Background(), job, app.DefaultPollInterval, nil, func(err error) {
		if err == nil {
			logging.Info("run finished", "job", job.Name, "elapsed", job.Elapsed())
		}
	})
	c.JSON(http.StatusAccepted, gin.H{"job": job.Name, "reprocess": reprocess})
}

// ListenAndServe runs the HTTP server until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logging.Info("serving", "addr", addr)

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
