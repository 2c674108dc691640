// Package server exposes the workflow controller over HTTP so a browser
// renderer can drive it. Every transition endpoint answers with the state
// snapshot that resulted from it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"visualsoal/internal/logging"
	"visualsoal/internal/types"
	"visualsoal/internal/workflow"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server is the HTTP bridge.
type Server struct {
	ctrl    *workflow.Controller
	echo    *echo.Echo
	timeout time.Duration
	access  *zap.Logger
}

// New builds the router. timeout bounds each generation call; zero means
// only the request context bounds it.
func New(ctrl *workflow.Controller, timeout time.Duration) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s := &Server{ctrl: ctrl, echo: e, timeout: timeout, access: zap.NewNop()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)

	api := e.Group("/api")
	api.GET("/state", s.getState)
	api.PUT("/state", s.putState)
	api.POST("/analyze", s.analyze)
	api.POST("/render", s.render)
	api.POST("/error/dismiss", s.dismissError)
	api.GET("/history", s.listHistory)
	api.POST("/history/:id/restore", s.restore)
	api.DELETE("/history/:id", s.deleteRecord)
	api.GET("/history/:id/image", s.image)
	api.GET("/events", s.events)

	return s
}

// SetAccessLog sends one line per request to l in addition to the server
// category log.
func (s *Server) SetAccessLog(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	s.access = l
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Server("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logging.Server("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		log := logging.WithRequestID(logging.CategoryServer, reqID)

		err := next(c)
		if err != nil {
			c.Error(err)
		}
		elapsed := time.Since(start)
		log.Info("%s %s -> %d (%v)", c.Request().Method, c.Request().URL.Path, c.Response().Status, elapsed)
		s.access.Info("request",
			zap.String("id", reqID),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("elapsed", elapsed),
		)
		return nil
	}
}

// =============================================================================
// STATE
// =============================================================================

type stateEdit struct {
	Input *string `json:"input"`
	Style *string `json:"style"`
	Ratio *string `json:"ratio"`
	View  *string `json:"view"`
}

func (s *Server) getState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) putState(c echo.Context) error {
	var edit stateEdit
	if err := c.Bind(&edit); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := s.applyEdit(edit); err != nil {
		return s.transitionResult(c, err)
	}
	if edit.View != nil {
		view := types.View(*edit.View)
		if view != types.ViewGenerate && view != types.ViewHistory {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown view "+*edit.View)
		}
		s.ctrl.SetView(view)
	}
	return c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

// applyEdit validates every field before touching the controller.
func (s *Server) applyEdit(edit stateEdit) error {
	var style types.Style
	var ratio types.AspectRatio
	var err error
	if edit.Style != nil {
		if style, err = types.ParseStyle(*edit.Style); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
	}
	if edit.Ratio != nil {
		if ratio, err = types.ParseAspectRatio(*edit.Ratio); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
	}

	if edit.Input != nil {
		if err := s.ctrl.SetInput(*edit.Input); err != nil {
			return err
		}
	}
	if edit.Style != nil {
		if err := s.ctrl.SetStyle(style); err != nil {
			return err
		}
	}
	if edit.Ratio != nil {
		if err := s.ctrl.SetAspectRatio(ratio); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) dismissError(c echo.Context) error {
	s.ctrl.DismissError()
	return c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

// =============================================================================
// STAGES
// =============================================================================

func (s *Server) stageContext(c echo.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(c.Request().Context(), s.timeout)
	}
	return context.WithCancel(c.Request().Context())
}

func (s *Server) analyze(c echo.Context) error {
	var edit stateEdit
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&edit); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
		}
	}
	if err := s.applyEdit(edit); err != nil {
		return s.transitionResult(c, err)
	}

	ctx, cancel := s.stageContext(c)
	defer cancel()
	return s.transitionResult(c, s.ctrl.StartAnalysis(ctx))
}

func (s *Server) render(c echo.Context) error {
	ctx, cancel := s.stageContext(c)
	defer cancel()
	return s.transitionResult(c, s.ctrl.StartRender(ctx))
}

// transitionResult maps a transition error to a status code. The body is
// always the resulting state, which carries the localized error text.
func (s *Server) transitionResult(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return c.JSON(statusFor(err), s.ctrl.Snapshot())
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch types.KindOf(err) {
	case types.KindBusy:
		return http.StatusConflict
	case types.KindEmptyInput, types.KindEmptyAnalysisResult:
		return http.StatusUnprocessableEntity
	case types.KindModelUnavailable:
		return http.StatusServiceUnavailable
	case types.KindPersistenceWrite:
		// The render itself succeeded; the state holds the image.
		return http.StatusOK
	}
	return http.StatusBadGateway
}

// =============================================================================
// HISTORY
// =============================================================================

func (s *Server) listHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctrl.History())
}

func (s *Server) restore(c echo.Context) error {
	found, err := s.ctrl.RestoreID(c.Param("id"))
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "no history record "+c.Param("id"))
	}
	return s.transitionResult(c, err)
}

func (s *Server) deleteRecord(c echo.Context) error {
	if err := s.ctrl.DeleteRecord(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s.ctrl.History())
}

func (s *Server) image(c echo.Context) error {
	rec, ok := s.ctrl.Record(c.Param("id"))
	if !ok || rec.ImageData == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no image for "+c.Param("id"))
	}
	mime, data, err := types.DecodeDataURL(rec.ImageData)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("inline; filename=%q", rec.ID+types.FileExtension(mime)))
	return c.Blob(http.StatusOK, mime, data)
}

// =============================================================================
// EVENTS
// =============================================================================

// events streams a state snapshot after every transition as server-sent
// events. The current state is sent first.
func (s *Server) events(c echo.Context) error {
	updates := make(chan types.State, 16)
	cancel := s.ctrl.Subscribe(func(st types.State) {
		select {
		case updates <- st:
		default:
			// Slow reader; it catches up on the next snapshot.
		}
	})
	defer cancel()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, s.ctrl.Snapshot()); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-updates:
			if err := writeEvent(w, st); err != nil {
				logging.Get(logging.CategoryServer).Debug("event stream closed: %v", err)
				return nil
			}
		}
	}
}

func writeEvent(w *echo.Response, st types.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
