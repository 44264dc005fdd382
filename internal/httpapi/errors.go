package httpapi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"lamivi/internal/manager"
	"lamivi/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// errCUDAUnavailable is 409: the worker reported no usable CUDA device.
var errCUDAUnavailable = errors.New("cuda is not available on this host")

// statusFor maps a bridge error to an HTTP status and client message.
func statusFor(err error) (int, string) {
	switch {
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, err.Error()
	case manager.IsInvalidDevice(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errCUDAUnavailable):
		return http.StatusConflict, err.Error()
	case manager.IsRequestTimeout(err):
		return http.StatusGatewayTimeout, "processing failed, retry: " + err.Error()
	case manager.IsUpstreamError(err):
		return http.StatusBadGateway, "processing failed, retry: " + err.Error()
	case manager.IsSpawnFailure(err), manager.IsBootTimeout(err), manager.IsWorkerCrash(err),
		manager.IsProtocolError(err), errors.Is(err, manager.ErrClosed):
		return http.StatusServiceUnavailable, "backend unavailable: " + err.Error()
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode(), he.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

// writeServiceError writes the JSON error payload for err.
func writeServiceError(w http.ResponseWriter, err error) int {
	status, msg := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("pending_limit")
	}
	kind := manager.Kind(err)
	if errors.Is(err, errCUDAUnavailable) {
		kind = "cuda_unavailable"
	}
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status, Kind: kind})
	return status
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
