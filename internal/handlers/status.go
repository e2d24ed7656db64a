package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/txconflict/api"
	config "github.com/thirdweb-dev/txconflict/configs"
	"github.com/thirdweb-dev/txconflict/internal/middleware"
	"github.com/thirdweb-dev/txconflict/internal/orchestrator"
)

const DEFAULT_API_HOST = ":2112"

type ProgressSource interface {
	Get(chain string) (orchestrator.ChainProgress, bool)
	All() []orchestrator.ChainProgress
}

type ProgressQuery struct {
	Chain string `schema:"chain"`
}

func NewRouter(progress ProgressSource) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("Status handler panicked")
		api.InternalErrorHandler(c)
	}))
	r.Use(middleware.Logger("/health", "/metrics"))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/progress", middleware.Authorization(config.Cfg.API.Username, config.Cfg.API.Password), GetProgress(progress))
	return r
}

// GetProgress reports every chain, or the one named by the chain query parameter.
func GetProgress(progress ProgressSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query ProgressQuery
		if err := api.ParseQueryParams(c.Request.URL.Query(), &query); err != nil {
			api.BadRequestErrorHandler(c, err)
			return
		}
		if query.Chain == "" {
			c.JSON(http.StatusOK, api.QueryResponse{Data: progress.All()})
			return
		}
		chainProgress, ok := progress.Get(query.Chain)
		if !ok {
			api.NotFoundErrorHandler(c, fmt.Errorf("chain %s is not being analyzed", query.Chain))
			return
		}
		c.JSON(http.StatusOK, api.QueryResponse{Data: chainProgress})
	}
}

// Serve runs the status server until ctx is done.
func Serve(ctx context.Context, host string, progress ProgressSource) error {
	if host == "" {
		host = DEFAULT_API_HOST
	}
	srv := &http.Server{
		Addr:    host,
		Handler: NewRouter(progress),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("host", host).Msg("Starting status server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown failed: %w", err)
	}
	log.Debug().Msg("Status server stopped")
	return nil
}
