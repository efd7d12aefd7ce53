package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"media-transcription-service/internal/models"
	"media-transcription-service/internal/observability/logging"
	"media-transcription-service/internal/observability/metrics"
	"media-transcription-service/internal/service/transcription"
)

// MsgFileTooLarge is returned with 413 when an upload exceeds the limit.
const MsgFileTooLarge = "file too large"

// Backend is the part of the application the router serves.
type Backend interface {
	Ready() bool
	Service() (*transcription.Service, error)
}

type handler struct {
	backend   Backend
	maxUpload int64
}

// NewRouter constructs the HTTP router for the service. maxUpload bounds
// the request body in bytes; zero or less disables the limit.
func NewRouter(backend Backend, maxUpload int64) http.Handler {
	h := &handler{backend: backend, maxUpload: maxUpload}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(recordMetrics(metrics.DefaultMetrics))

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !backend.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading models"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Post("/transcribe/", h.transcribe)
	r.Post("/transcribe", h.transcribe)

	return r
}

// transcribe answers every accepted upload with 200, carrying either the
// text or the error message in the body.
func (h *handler) transcribe(w http.ResponseWriter, r *http.Request) {
	ctx := logging.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))

	svc, err := h.backend.Service()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResult{Error: err.Error()})
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Msg("rejected upload")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, models.ErrorResult{Error: MsgFileTooLarge})
			return
		}
		writeJSON(w, http.StatusBadRequest, models.ErrorResult{Error: err.Error()})
		return
	}
	defer file.Close()

	upload := transcription.Upload{Filename: header.Filename, Body: file}

	text, err := svc.Process(ctx, upload, r.FormValue("method"))
	if err != nil {
		writeJSON(w, http.StatusOK, models.ErrorResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.TranscriptionResult{Transcription: text})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func recordMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordHTTPRequest(route, strconv.Itoa(status), time.Since(start).Seconds())
		})
	}
}
