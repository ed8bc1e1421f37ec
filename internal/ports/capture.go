package ports

import (
	"context"
	"time"
)

// CaptureRequest is the preferred capture format. The device may settle on
// something else; CaptureSession.Negotiated is authoritative.
type CaptureRequest struct {
	Device    string
	Width     int
	Height    int
	FrameRate float32
	Format    string
}

// CaptureFormat is what the device actually delivers.
type CaptureFormat struct {
	Width       int
	Height      int
	FrameRate   float64
	PixelFormat string
}

// Frame is one packed RGB frame owned by the capture library until Release.
type Frame interface {
	Pixels() []byte
	CapturedAt() time.Time
	Release()
}

// FrameHandler is invoked from the capture goroutine, one frame at a time.
type FrameHandler func(Frame)

// ErrorHandler receives asynchronous device faults.
type ErrorHandler func(error)

// CaptureSession is an open, negotiated capture stream.
type CaptureSession interface {
	Negotiated() CaptureFormat
	SetHandlers(onFrame FrameHandler, onError ErrorHandler)
	StartCapture() error
	StopCapture() error
	Close() error
}

// CaptureDevice opens capture sessions.
type CaptureDevice interface {
	Open(ctx context.Context, req CaptureRequest) (CaptureSession, error)
}
