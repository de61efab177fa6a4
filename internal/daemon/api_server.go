package daemon

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"authindex/internal/api"
	"authindex/internal/config"
	"authindex/internal/enrich"
	"authindex/internal/logging"
	"authindex/internal/metrics"
	"authindex/internal/services"
	"authindex/internal/textutil"
)

//go:embed templates/linked.html
var linkedTemplate string

const linkedTemplateName = "linked"

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	maxLookupIDs    = 100
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *gin.Engine

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	gin.SetMode(gin.ReleaseMode)
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), srv.accessLog())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.SetHTMLTemplate(template.Must(template.New(linkedTemplateName).Parse(linkedTemplate)))
	router.GET("/polona-lod/:id", srv.handleLinkedHTML)

	apiGroup := router.Group("/api")
	apiGroup.GET("/status", srv.handleStatus)
	apiGroup.GET("/stats", srv.handleStats)
	apiGroup.GET("/authorities/:ids", srv.handleAuthorities)
	apiGroup.GET("/records/bibs/:id", srv.handleBib)
	apiGroup.GET("/:mode/bibs", srv.handleEnrichedBibs)
	apiGroup.GET("/v2/polona-lod/:id", srv.handleLinkedJSON)

	updater := router.Group("/updater", authMiddleware(cfg.Paths.APIToken))
	updater.POST("/:indexType", srv.handleStartSync)
	updater.GET("/:indexType/status", srv.handleSyncStatus)

	srv.router = router
	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout() + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(c *gin.Context) {
	status := s.daemon.Status(c.Request.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		IndexPath:    status.IndexPath,
		StatePath:    status.StatePath,
		Syncs:        make([]api.SyncStatus, 0, len(status.Syncs)),
	}
	for _, st := range status.Syncs {
		payload.Syncs = append(payload.Syncs, api.FromSyncStatus(st))
	}
	c.JSON(http.StatusOK, payload)
}

func (s *apiServer) handleStats(c *gin.Context) {
	stats, err := s.daemon.svc.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromStats(stats))
}

func (s *apiServer) handleAuthorities(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Param("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || len(ids) > maxLookupIDs {
		s.writeError(c, services.Wrap(services.ErrValidation, "api", "authorities", fmt.Sprintf("expected 1-%d comma-separated ids", maxLookupIDs), nil))
		return
	}
	found, err := s.daemon.svc.LookupAuthorities(c.Request.Context(), ids)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromAuthorities(found))
}

func (s *apiServer) handleBib(c *gin.Context) {
	raw, err := s.daemon.svc.LookupBib(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml", raw)
}

// handleEnrichedBibs passes the raw query through to the upstream bibs feed
// and answers with the enriched page.
func (s *apiServer) handleEnrichedBibs(c *gin.Context) {
	mode, err := enrich.ParseMode(c.Param("mode"))
	if err != nil {
		s.writeError(c, services.Wrap(services.ErrNotFound, "api", "bibs", fmt.Sprintf("unknown mode %q", c.Param("mode")), nil))
		return
	}
	ctx := services.WithRequestID(c.Request.Context(), requestID(c))
	page, err := s.daemon.svc.EnrichPage(ctx, c.Request.URL.RawQuery, mode)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if page.Result.Partial {
		c.Header("X-Enrichment-Partial", "true")
	}
	c.Data(http.StatusOK, "application/xml", page.Body)
}

// handleLinkedJSON serves the role-grouped identifiers of one bib record.
func (s *apiServer) handleLinkedJSON(c *gin.Context) {
	data, ok := s.describeBib(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *apiServer) handleLinkedHTML(c *gin.Context) {
	data, ok := s.describeBib(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, linkedTemplateName, gin.H{
		"BibID": textutil.NormalizeBibID(strings.TrimSpace(c.Param("id"))),
		"Data":  data,
	})
}

func (s *apiServer) describeBib(c *gin.Context) (enrich.LinkedData, bool) {
	ctx := services.WithRequestID(c.Request.Context(), requestID(c))
	data, err := s.daemon.svc.DescribeBib(ctx, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return enrich.LinkedData{}, false
	}
	if data.Partial {
		c.Header("X-Enrichment-Partial", "true")
	}
	if data.Descriptors == nil {
		data.Descriptors = []enrich.LinkedDescriptor{}
	}
	return data, true
}

func (s *apiServer) handleStartSync(c *gin.Context) {
	ctx := services.WithRequestID(c.Request.Context(), requestID(c))
	res, err := s.daemon.svc.StartSync(ctx, c.Param("indexType"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusAccepted
	if res.Busy {
		status = http.StatusConflict
	}
	c.JSON(status, api.FromStartResult(res))
}

func (s *apiServer) handleSyncStatus(c *gin.Context) {
	status, err := s.daemon.svc.SyncStatus(c.Request.Context(), c.Param("indexType"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSyncStatus(status))
}

func (s *apiServer) writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.String("path", c.FullPath()),
			logging.String(logging.FieldCorrelationID, requestID(c)),
			logging.Error(err),
		)
	}
	c.JSON(status, api.ErrorResponse{Error: err.Error(), RequestID: requestID(c)})
}

func (s *apiServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug("request served",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldCorrelationID, requestID(c)),
		)
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
