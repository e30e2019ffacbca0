// Package statusapi serves a small local HTTP API for watching the pipeline.
package statusapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/andresmejia3/facegate/internal/metrics"
	"github.com/andresmejia3/facegate/internal/pipeline"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Source is the read-only view of a running pipeline.
type Source interface {
	Stats() pipeline.Stats
	Snapshot() []types.Annotation
}

type face struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	Verdict string `json:"verdict"`
}

// Router builds the gin engine.
func Router(src Source, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/faces", func(c *gin.Context) {
		snap := src.Snapshot()
		faces := make([]face, 0, len(snap))
		for _, a := range snap {
			faces = append(faces, face{X: a.Box.X, Y: a.Box.Y, W: a.Box.W, H: a.Box.H, Verdict: a.Verdict.String()})
		}
		c.JSON(http.StatusOK, gin.H{"data": faces})
	})
	r.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": src.Stats()})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return r
}

// Start listens on addr in the background. The caller shuts the server down.
func Start(addr string, src Source, m *metrics.Metrics, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(src, m),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("📊 Status API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("🚨 Status API stopped", zap.Error(err))
		}
	}()
	return srv
}
