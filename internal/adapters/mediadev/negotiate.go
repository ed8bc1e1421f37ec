package mediadev

import (
	"math"
	"strings"

	"github.com/pion/mediadevices/pkg/prop"

	"github.com/alexrobin/osh-video/internal/ports"
)

const (
	defaultWidth  = 640
	defaultHeight = 480
)

// negotiate picks the advertised mode closest to req. Resolution distance
// dominates, then the pixel format, then the frame rate.
func negotiate(props []prop.Media, req ports.CaptureRequest) (prop.Media, bool) {
	w, h := req.Width, req.Height
	if w <= 0 || h <= 0 {
		w, h = defaultWidth, defaultHeight
	}

	var (
		best  prop.Media
		score = math.Inf(1)
		found bool
	)
	for _, p := range props {
		if p.Width <= 0 || p.Height <= 0 {
			continue
		}
		s := math.Abs(float64(p.Width-w)) + math.Abs(float64(p.Height-h))
		s *= 1000
		if req.Format != "" && !strings.EqualFold(string(p.FrameFormat), req.Format) {
			s += 500
		}
		if req.FrameRate > 0 && p.FrameRate > 0 {
			s += math.Abs(float64(p.FrameRate - req.FrameRate))
		}
		if s < score {
			best, score, found = p, s, true
		}
	}
	return best, found
}
