package types

// InpaintRequest is the JSON form of POST /api/inpaint. Multipart uploads
// with "image" and "mask" file parts are accepted as well.
type InpaintRequest struct {
	// Base64-encoded source image (PNG or JPEG).
	ImageB64 string `json:"image_b64"`
	// Base64-encoded mask; white marks the region to fill.
	MaskB64 string `json:"mask_b64"`
}

// InpaintResponse is returned by POST /api/inpaint when the client asks for JSON.
type InpaintResponse struct {
	// Base64-encoded PNG result.
	OutputB64 string `json:"output_b64"`
	// Non-fatal advisory from the worker, if any.
	// example: LAMIVI_DEVICE=cuda requested, but torch.cuda.is_available() is False. Falling back to CPU.
	Warning string `json:"warning,omitempty"`
}

// DeviceRequest is the payload of POST /api/device.
type DeviceRequest struct {
	// Target device: cpu or cuda.
	// example: cuda
	Mode string `json:"mode" example:"cuda"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: backend unavailable
	Error string `json:"error" example:"backend unavailable"`
	// HTTP status code.
	// example: 503
	Code int `json:"code" example:"503"`
	// Machine-readable error kind (spawn_failure, boot_timeout, worker_crash, ...).
	// example: spawn_failure
	Kind string `json:"kind,omitempty" example:"spawn_failure"`
}
