package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nmt-api/internal/config"
	"nmt-api/internal/models"
	"nmt-api/internal/translation"
	"nmt-api/internal/validation"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

// Translator is the translation capability the HTTP layer serves.
type Translator interface {
	Load(ctx context.Context) error
	Status() translation.Status
	Translate(ctx context.Context, req models.TranslationRequest) (*models.TranslationResponse, error)
	TranslateBatch(ctx context.Context, req models.BatchTranslationRequest) ([]models.TranslationResponse, error)
}

type Server struct {
	cfg       config.Config
	svc       Translator
	validator *validation.Validator
	logger    *zap.Logger
	app       *echo.Echo
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, svc Translator, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("translator must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	validator, err := validation.New(validation.Limits{
		MaxTextLength:    cfg.Model.MaxTextLength,
		DefaultNumBeams:  cfg.Model.DefaultNumBeams,
		DefaultMaxLength: cfg.Model.MaxOutputLength,
	})
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug
	e.HTTPErrorHandler = apiErrorHandler(logger)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered",
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.ByteString("stack", stack),
			)
			return err
		},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.String("remote_ip", v.RemoteIP),
				zap.Int64("latency_ms", v.Latency.Milliseconds()),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	srv := &Server{
		cfg:       cfg,
		svc:       svc,
		validator: validator,
		logger:    logger,
		app:       e,
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the routed application, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run loads the model in the background, serves HTTP and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg)
	s.logger.Info("starting server", zap.String("addr", s.cfg.Address()))

	go s.loadModel(ctx)

	httpServer := &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout(s.cfg.Model),
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

// writeTimeout covers the slowest valid request: a full batch whose items each run up to
// model.request_timeout one after another.
func writeTimeout(m config.ModelConfig) time.Duration {
	return time.Duration(models.MaxBatchSize)*m.RequestTimeout + readTimeout
}

func (s *Server) loadModel(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, s.cfg.Model.LoadTimeout)
	defer cancel()

	start := time.Now()
	if err := s.svc.Load(loadCtx); err != nil {
		s.logger.Error("model load failed, translation endpoints will return 503", zap.Error(err))
		return
	}
	s.logger.Info("translation service ready", zap.Duration("load_time", time.Since(start)))
}

func (s *Server) registerRoutes() {
	s.app.GET("/", s.handleRoot)
	s.app.GET("/health", s.handleLiveness)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.app.Group(s.cfg.API.Prefix)
	if s.cfg.RateLimit.PerMinute > 0 {
		api.Use(rateLimiter(s.cfg.RateLimit.PerMinute))
	}
	api.POST("/translate", s.handleTranslate)
	api.POST("/translate/batch", s.handleTranslateBatch)
	api.GET("/health", s.handleHealth)
	api.GET("/languages", s.handleLanguages)
	api.GET("/model/info", s.handleModelInfo)
}

func rateLimiter(perMinute int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		ErrorHandler: func(c echo.Context, err error) error {
			return requestError{
				Status:  http.StatusForbidden,
				Message: "unable to identify client",
				Type:    "forbidden",
			}
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return requestError{
				Status:  http.StatusTooManyRequests,
				Message: fmt.Sprintf("rate limit of %d requests per minute exceeded", perMinute),
				Type:    "rate_limit_exceeded",
			}
		},
	})
}

func (s *Server) handleRoot(c echo.Context) error {
	prefix := s.cfg.API.Prefix
	return c.JSON(http.StatusOK, map[string]any{
		"message":     s.cfg.API.ProjectName,
		"description": s.cfg.API.Description,
		"version":     s.cfg.API.Version,
		"endpoints": map[string]string{
			"translate":       prefix + "/translate",
			"translate_batch": prefix + "/translate/batch",
			"health":          prefix + "/health",
			"languages":       prefix + "/languages",
			"model_info":      prefix + "/model/info",
			"metrics":         "/metrics",
		},
	})
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   s.cfg.API.Version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	st := s.svc.Status()

	resp := models.HealthResponse{
		Status:      healthStatus(st.State),
		Version:     s.cfg.API.Version,
		ModelLoaded: st.State == translation.StateReady,
		ModelInfo:   st.Info,
		Timestamp:   time.Now().UTC(),
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func healthStatus(state translation.State) string {
	switch state {
	case translation.StateReady:
		return "healthy"
	case translation.StateFailed:
		return "failed"
	default:
		return "loading"
	}
}

func (s *Server) handleLanguages(c echo.Context) error {
	langs := translation.SupportedLanguages()
	return c.JSON(http.StatusOK, models.SupportedLanguagesResponse{
		Languages:  langs,
		TotalCount: len(langs),
	})
}

func (s *Server) handleModelInfo(c echo.Context) error {
	st := s.svc.Status()
	if st.State != translation.StateReady {
		return toHTTPError(translation.ErrNotReady)
	}
	return c.JSON(http.StatusOK, st.Info)
}

func (s *Server) handleTranslate(c echo.Context) error {
	body, err := readRequestBody(c)
	if err != nil {
		return err
	}

	req, err := s.validator.TranslationRequest(body)
	if err != nil {
		return toHTTPError(err)
	}

	resp, err := s.svc.Translate(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTranslateBatch(c echo.Context) error {
	body, err := readRequestBody(c)
	if err != nil {
		return err
	}

	req, err := s.validator.BatchRequest(body)
	if err != nil {
		return toHTTPError(err)
	}

	start := time.Now()
	results, err := s.svc.TranslateBatch(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, models.BatchTranslationResponse{
		Translations:          results,
		TotalProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	})
}

func readRequestBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	body, err := io.ReadAll(req.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, requestError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("request body must not exceed %d bytes", maxErr.Limit),
				Type:    "request_too_large",
			}
		}
		return nil, requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("read request body: %v", err),
			Type:    "invalid_request",
		}
	}
	return body, nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
	Details any
}

func (e requestError) Error() string {
	return e.Message
}

func writeError(c echo.Context, reqErr requestError) error {
	return c.JSON(reqErr.Status, models.ErrorResponse{
		Error:     reqErr.Type,
		Message:   reqErr.Message,
		Details:   reqErr.Details,
		Timestamp: time.Now().UTC(),
	})
}

func apiErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var reqErr requestError
		if errors.As(err, &reqErr) {
			_ = writeError(c, reqErr)
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = writeError(c, requestError{
				Status:  he.Code,
				Message: fmt.Sprint(he.Message),
				Type:    errorType(he.Code),
			})
			return
		}

		logger.Error("unhandled error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		_ = writeError(c, requestError{
			Status:  http.StatusInternalServerError,
			Message: "internal server error",
			Type:    "internal_error",
		})
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "invalid_request"
}

func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return requestError{
			Status:  http.StatusUnprocessableEntity,
			Message: "request validation failed",
			Type:    "validation_error",
			Details: verr.Fields,
		}
	}

	switch {
	case errors.Is(err, translation.ErrNotReady):
		return requestError{
			Status:  http.StatusServiceUnavailable,
			Message: "translation service is not ready, the model is still loading or failed to load",
			Type:    "service_unavailable",
		}
	case errors.Is(err, translation.ErrInvalidInput):
		return requestError{
			Status:  http.StatusUnprocessableEntity,
			Message: err.Error(),
			Type:    "validation_error",
		}
	case errors.Is(err, translation.ErrTranslationFailed):
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "translation failed",
			Type:    "translation_error",
		}
	}

	return err
}

func printStartupBanner(cfg config.Config) {
	prefix := cfg.API.Prefix
	fmt.Println()
	fmt.Printf("%s %s\n", cfg.API.ProjectName, cfg.API.Version)
	fmt.Printf("Listening on http://%s\n", cfg.Address())
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
	fmt.Printf("  POST %s/translate\n", prefix)
	fmt.Printf("  POST %s/translate/batch\n", prefix)
	fmt.Printf("  GET  %s/health\n", prefix)
	fmt.Printf("  GET  %s/languages\n", prefix)
	fmt.Printf("  GET  %s/model/info\n", prefix)
	fmt.Printf("Example:\n  curl http://%s%s/translate -H 'Content-Type: application/json' -d '{\"text\":\"Hello, how are you?\"}'\n\n",
		cfg.Address(), prefix)
}
