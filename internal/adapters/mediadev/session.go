package mediadev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/mediadevices/pkg/io/video"

	"github.com/alexrobin/osh-video/internal/ports"
)

const (
	readErrorPause = 100 * time.Millisecond
	stopWait       = 2 * time.Second
)

var errSessionClosed = errors.New("capture session closed")

type closer interface{ Close() error }

type session struct {
	drv    closer
	reader video.Reader
	format ports.CaptureFormat
	clk    clock.Clock
	bufs   sync.Pool

	mu      sync.Mutex
	onFrame ports.FrameHandler
	onError ports.ErrorHandler
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

func newSession(drv closer, reader video.Reader, format ports.CaptureFormat, clk clock.Clock) *session {
	s := &session{drv: drv, reader: reader, format: format, clk: clk}
	size := format.Width * format.Height * 3
	s.bufs.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return s
}

func (s *session) Negotiated() ports.CaptureFormat { return s.format }

func (s *session) SetHandlers(onFrame ports.FrameHandler, onError ports.ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame, s.onError = onFrame, onError
}

// StartCapture launches the read loop. Calling it while capturing is a no-op.
func (s *session) StartCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	if s.cancel != nil {
		return nil
	}
	if s.onFrame == nil {
		return fmt.Errorf("start capture: no frame handler set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done, s.onFrame, s.onError)
	return nil
}

// StopCapture halts the read loop and waits briefly for it to exit. A reader
// blocked on a stalled device is unblocked by Close.
func (s *session) StopCapture() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-time.After(stopWait):
	}
	return nil
}

func (s *session) Close() error {
	if err := s.StopCapture(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.drv.Close()
}

func (s *session) loop(ctx context.Context, done chan struct{}, onFrame ports.FrameHandler, onError ports.ErrorHandler) {
	defer close(done)
	report := func(err error) {
		if onError != nil && ctx.Err() == nil {
			onError(err)
		}
	}

	for ctx.Err() == nil {
		img, release, err := s.reader.Read()
		if err != nil {
			if release != nil {
				release()
			}
			report(err)
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorPause):
			}
			continue
		}

		ts := s.clk.Now()
		buf := s.bufs.Get().(*[]byte)
		perr := packRGB(*buf, img)
		release()
		if perr != nil {
			s.bufs.Put(buf)
			report(perr)
			continue
		}
		if ctx.Err() != nil {
			s.bufs.Put(buf)
			return
		}
		onFrame(&capturedFrame{pixels: *buf, ts: ts, put: func() { s.bufs.Put(buf) }})
	}
}

type capturedFrame struct {
	pixels   []byte
	ts       time.Time
	put      func()
	released atomic.Bool
}

func (f *capturedFrame) Pixels() []byte        { return f.pixels }
func (f *capturedFrame) CapturedAt() time.Time { return f.ts }

// Release hands the buffer back for reuse. Later calls do nothing.
func (f *capturedFrame) Release() {
	if f.released.CompareAndSwap(false, true) {
		f.put()
	}
}
