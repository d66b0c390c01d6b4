package middleware

import (
	"bytes"
	"net/http"
)

// StatusRecorder remembers the status and size of a response while passing
// it through.
type StatusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten uint64
	wroteHeader  bool
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *StatusRecorder) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}

	w.statusCode = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += uint64(n)

	return n, err
}

func (w *StatusRecorder) StatusCode() int {
	return w.statusCode
}

func (w *StatusRecorder) BytesWritten() uint64 {
	return w.bytesWritten
}

func (w *StatusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *StatusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// bodyRecorder additionally keeps a copy of the body for replay.
type bodyRecorder struct {
	*StatusRecorder
	body bytes.Buffer
}

func newBodyRecorder(w http.ResponseWriter) *bodyRecorder {
	return &bodyRecorder{StatusRecorder: NewStatusRecorder(w)}
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)

	return r.StatusRecorder.Write(b)
}

func (r *bodyRecorder) capturedHeaders() map[string]string {
	headers := make(map[string]string)

	for key, values := range r.Header() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	return headers
}
