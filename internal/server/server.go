package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sjsage522/psa10finder/config"
	"sjsage522/psa10finder/helpers"
	"sjsage522/psa10finder/logger"
	"sjsage522/psa10finder/services/lookup"
)

const healthMessage = "PSA10 finder is running"

// Querier answers price queries
type Querier interface {
	Query(ctx context.Context, name, set, number string) lookup.Result
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	lookup   Querier
	upstream *Upstream
	log      *logger.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(q Querier) *Handler {
	return &Handler{lookup: q, log: logger.ForServer()}
}

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(handler.log))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/snkrdunk/search", handler.Search)
		api.GET("/psa/cert/:certNumber", handler.PSACert)
		api.GET("/pricecharting/csv", handler.PriceChartingCSV)
	}

	return router
}

// HealthCheck returns the health status of the bridge
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   healthMessage,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Search runs a price query. Anything from the first ":" in name on is
// dropped, so "Gengar:2" queries "Gengar".
func (h *Handler) Search(c *gin.Context) {
	name := cleanName(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing name parameter"})
		return
	}

	h.log.Debug().
		Str("raw_name", c.Query("name")).
		Str("name", name).
		Msg("Search request")

	result := h.lookup.Query(c.Request.Context(), name, c.Query("set"), c.Query("number"))
	if !result.Success {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func cleanName(raw string) string {
	name, err := helpers.GetSplitPart(raw, ":", 0)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}

// Run serves router on addr until ctx is canceled
func Run(ctx context.Context, addr string, router http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
