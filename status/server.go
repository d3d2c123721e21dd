package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/mocap/common"
)

// NewRouter sets up the status routes
func NewRouter(handler *StatusHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies(nil)

	api := router.Group("/api")
	api.GET("/stats", handler.GetStats)
	api.GET("/clips", handler.GetClips)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "mocap",
		})
	})

	return router
}

// Server runs the status API in the background
type Server struct {
	httpServer *http.Server
	logger     common.Logger
}

func NewServer(port int, handler *StatusHandler, logger common.Logger) *Server {
	if logger == nil {
		logger = common.NopLogger
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start listens in a background goroutine
func (s *Server) Start() {
	go func() {
		s.logger.Info("Status API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status API failed", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
