// Package server exposes the pipeline over HTTP: spreadsheet uploads are
// validated and normalized in memory and, on request, loaded into the store.
//
// ROUTES:
//
//	GET  /healthz
//	POST /api/uploads            multipart "file" (.xlsx or .csv), ?load=true
//	GET  /api/orders/count
//	GET  /api/orders/sample      ?limit=N (default 5, max 100)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ginjaninja78/warranty-orders/internal/analysis"
	"github.com/ginjaninja78/warranty-orders/internal/config"
	"github.com/ginjaninja78/warranty-orders/internal/converter"
	"github.com/ginjaninja78/warranty-orders/internal/extractor"
	"github.com/ginjaninja78/warranty-orders/internal/logging"
	"github.com/ginjaninja78/warranty-orders/internal/report"
	"github.com/ginjaninja78/warranty-orders/internal/store"
	"github.com/ginjaninja78/warranty-orders/internal/types"
	"github.com/ginjaninja78/warranty-orders/pkg/utils"
)

const (
	defaultSampleLimit = 5
	maxSampleLimit     = 100
	uploadField        = "file"
)

// Server serves the upload API.
type Server struct {
	cfg    *config.MainConfig
	loader *store.Loader
	logger *zap.Logger
	now    func() time.Time
}

// New creates a server. loader may be nil, in which case the order
// endpoints answer 503 and uploads cannot be loaded.
func New(cfg *config.MainConfig, loader *store.Loader, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, loader: loader, logger: logging.OrNop(logger), now: time.Now}
}

// Routes returns the chi router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads", s.handleUpload)
		r.Get("/orders/count", s.handleCount)
		r.Get("/orders/sample", s.handleSample)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", zap.String("addr", srv.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Server.MaxUploadMB << 20
	tooLargeMsg := fmt.Sprintf("upload exceeds %d MB", s.cfg.Server.MaxUploadMB)
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("missing multipart field %q", uploadField))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !utils.IsSupportedInput(name) {
		writeError(w, http.StatusBadRequest, "only .xlsx and .csv files are accepted")
		return
	}

	load := r.URL.Query().Get("load") == "true"
	if load && s.loader == nil {
		writeError(w, http.StatusConflict, "no store configured")
		return
	}

	sheet, err := converter.ReadSourceFrom(file, name, s.cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	conv := converter.New(name, s.cfg, converter.WithLogger(s.logger), converter.WithNow(s.now))
	res, err := conv.ProcessSheet(r.Context(), sheet)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, extractor.ErrMissingColumn) || errors.Is(err, extractor.ErrIncompleteMapping) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	doc := &report.Results{
		RunID:       uuid.New().String(),
		SourceFile:  name,
		SheetName:   sheet.Name,
		ProcessedAt: s.now(),
		Summary:     res.Summary,
		ValidRate:   res.Summary.ValidRate(),
		Rejections:  res.Rejections,
		Yearly:      analysis.ByYear(res.Records),
	}

	if load {
		section, err := s.load(r.Context(), res.Records)
		if err != nil {
			s.logger.Error("upload load failed", zap.String("file", name), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		section.Driver = s.cfg.Store.Driver
		doc.Load = section
	}

	s.logger.Info("upload processed",
		zap.String("file", name),
		zap.Int("total_rows", res.Summary.TotalRows),
		zap.Int("valid_rows", res.Summary.ValidRows),
		zap.Bool("loaded", load))

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) load(ctx context.Context, records []types.NormalizedRecord) (*report.LoadSection, error) {
	loaded, err := s.loader.Load(ctx, records)
	if err != nil {
		return nil, err
	}
	v, err := s.loader.Verify(ctx, loaded)
	if err != nil {
		return nil, err
	}
	return &report.LoadSection{
		Inserted:      loaded.Inserted,
		FailedBatches: loaded.FailedBatches,
		ExpectedCount: v.ExpectedCount,
		ActualCount:   v.ActualCount,
		Verified:      v.Match,
	}, nil
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	n, err := s.loader.Store().CountOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	limit := defaultSampleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSampleLimit)
	}

	orders, err := s.loader.Sample(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if orders == nil {
		orders = []types.NormalizedRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
