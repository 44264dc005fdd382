package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lamivi/pkg/types"
)

// warningHeader carries the worker's advisory (e.g. a CUDA fallback).
const warningHeader = "X-Lamivi-Warning"

// multipartMemory is how much of a multipart upload is kept in memory.
const multipartMemory = 32 << 20

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Inpaint(ctx context.Context, image, mask []byte) ([]byte, error)
	SetDeviceMode(ctx context.Context, mode string) error
	Health() types.Health
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(corsMiddleware())
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/inpaint", inpaintHandler(svc))
		r.Post("/device", deviceHandler(svc))
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Health())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Health().Ready {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// inpaintHandler godoc
// @Summary      Inpaint an image
// @Description  Fills the white area of mask in image. Accepts multipart "image"/"mask" files or a JSON body. Returns image/png unless Accept is application/json.
// @Tags         inpaint
// @Accept       json,mpfd
// @Produce      png,json
// @Param        request body types.InpaintRequest false "Base64 payload (JSON form)"
// @Success      200 {object} types.InpaintResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      429 {object} types.ErrorResponse
// @Failure      502 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Failure      504 {object} types.ErrorResponse
// @Router       /api/inpaint [post]
func inpaintHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		image, mask, status, err := readInpaintInput(r)
		if err != nil {
			writeJSONError(w, status, err.Error())
			return
		}
		observeInpaintPayload(image, mask)
		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := handlerContext(r, inpaintTimeout)
		defer cancel()
		out, err := svc.Inpaint(ctx, image, mask)
		if err != nil {
			// Client went away; nobody is listening for the answer.
			if r.Context().Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) && inpaintTimeout > 0 {
				writeJSONError(w, http.StatusGatewayTimeout, "processing failed, retry: request deadline exceeded")
				return
			}
			if serverBaseCtx.Err() != nil {
				writeJSONError(w, http.StatusServiceUnavailable, "server shutting down")
				return
			}
			writeServiceError(w, err)
			return
		}
		warning := ""
		if h := svc.Health(); h.Warning != nil {
			warning = *h.Warning
			w.Header().Set(warningHeader, sanitizeHeader(warning))
		}
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, types.InpaintResponse{
				OutputB64: base64.StdEncoding.EncodeToString(out),
				Warning:   warning,
			})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}

// deviceHandler godoc
// @Summary      Switch the worker device
// @Description  Restarts the worker on cpu or cuda and returns once it is ready. 409 when the worker reported CUDA as unavailable.
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        request body types.DeviceRequest true "Target device"
// @Success      200 {object} types.Health
// @Failure      400 {object} types.ErrorResponse
// @Failure      409 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Router       /api/device [post]
func deviceHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isJSON(r.Header.Get("Content-Type")) {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req types.DeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		mode := strings.ToLower(strings.TrimSpace(req.Mode))
		if mode == string(types.DeviceCUDA) {
			if h := svc.Health(); h.CUDAAvailable != nil && !*h.CUDAAvailable {
				writeServiceError(w, errCUDAUnavailable)
				return
			}
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.SetDeviceMode(ctx, mode); err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeServiceError(w, err)
			return
		}
		h := svc.Health()
		if h.Warning != nil {
			w.Header().Set(warningHeader, sanitizeHeader(*h.Warning))
		}
		writeJSON(w, http.StatusOK, h)
	}
}

// readInpaintInput extracts image and mask from a multipart or JSON body.
// The int is the status to answer with when err is set.
func readInpaintInput(r *http.Request) ([]byte, []byte, int, error) {
	ct := r.Header.Get("Content-Type")
	mt, _, _ := mime.ParseMediaType(ct)
	switch {
	case mt == "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, nil, bodyErrorStatus(err), errors.New("invalid multipart body")
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		image, err := formFile(r, "image")
		if err != nil {
			return nil, nil, http.StatusBadRequest, err
		}
		mask, err := formFile(r, "mask")
		if err != nil {
			return nil, nil, http.StatusBadRequest, err
		}
		return image, mask, 0, nil
	case isJSON(ct):
		var req types.InpaintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, nil, bodyErrorStatus(err), errors.New("invalid JSON body")
		}
		if req.ImageB64 == "" || req.MaskB64 == "" {
			return nil, nil, http.StatusBadRequest, errors.New("image_b64 and mask_b64 are required")
		}
		image, err := base64.StdEncoding.DecodeString(req.ImageB64)
		if err != nil {
			return nil, nil, http.StatusBadRequest, errors.New("image_b64 is not valid base64")
		}
		mask, err := base64.StdEncoding.DecodeString(req.MaskB64)
		if err != nil {
			return nil, nil, http.StatusBadRequest, errors.New("mask_b64 is not valid base64")
		}
		return image, mask, 0, nil
	default:
		return nil, nil, http.StatusUnsupportedMediaType, errors.New("Content-Type must be multipart/form-data or application/json")
	}
}

func formFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, errors.New(`missing "` + field + `" file`)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New(`cannot read "` + field + `" file`)
	}
	if len(b) == 0 {
		return nil, errors.New(`"` + field + `" file is empty`)
	}
	return b, nil
}

func bodyErrorStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func isJSON(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "application/json")
}

func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if isJSON(part) {
			return true
		}
	}
	return false
}

// sanitizeHeader drops characters net/http refuses in header values.
func sanitizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
}
