package protocol

// TypeReady is the "type" of the handshake envelope.
const TypeReady = "ready"

// Envelope is the union of every message the worker writes to stdout. A
// line is a handshake when Type is "ready" and a response when OK is set.
type Envelope struct {
	Type string `json:"type,omitempty"`

	// Handshake fields.
	Device          *string `json:"device,omitempty"`
	RequestedDevice string  `json:"requested_device,omitempty"`
	CUDAAvailable   *bool   `json:"cuda_available,omitempty"`
	Warning         *string `json:"warning,omitempty"`

	// Response fields.
	ID        string `json:"id,omitempty"`
	OK        *bool  `json:"ok,omitempty"`
	OutputB64 string `json:"output_b64,omitempty"`
	Error     string `json:"error,omitempty"`
	Trace     string `json:"trace,omitempty"`
}

// IsReady reports whether e is the worker handshake.
func (e Envelope) IsReady() bool { return e.Type == TypeReady }

// IsResponse reports whether e answers a request.
func (e Envelope) IsResponse() bool { return e.OK != nil }

// Ready is the handshake a worker emits once its model is loaded.
type Ready struct {
	Type            string  `json:"type"`
	Device          *string `json:"device"`
	RequestedDevice string  `json:"requested_device"`
	CUDAAvailable   *bool   `json:"cuda_available"`
	Warning         *string `json:"warning"`
}

// Ready extracts the handshake fields of e.
func (e Envelope) Ready() Ready {
	return Ready{
		Type:            TypeReady,
		Device:          e.Device,
		RequestedDevice: e.RequestedDevice,
		CUDAAvailable:   e.CUDAAvailable,
		Warning:         e.Warning,
	}
}

// Request asks the worker to inpaint one image.
type Request struct {
	ID       string `json:"id"`
	ImageB64 string `json:"image_b64"`
	MaskB64  string `json:"mask_b64"`
}

// Response is the worker's answer to a Request. Error is set when OK is false.
type Response struct {
	ID        string `json:"id,omitempty"`
	OK        bool   `json:"ok"`
	OutputB64 string `json:"output_b64,omitempty"`
	Error     string `json:"error,omitempty"`
	Trace     string `json:"trace,omitempty"`
}
