// Package mediadev opens V4L2 and other local cameras through pion/mediadevices
// and hands out packed RGB frames.
package mediadev

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/pion/mediadevices/pkg/driver"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/prop"

	"github.com/alexrobin/osh-video/internal/ports"
)

// Device is a ports.CaptureDevice backed by the mediadevices driver manager.
type Device struct {
	clk     clock.Clock
	drivers func() []driver.Driver
}

// NewDevice returns a device that stamps frames with clk. A nil clk uses the
// wall clock.
func NewDevice(clk clock.Clock) *Device {
	if clk == nil {
		clk = clock.New()
	}
	return &Device{clk: clk, drivers: videoDrivers}
}

func videoDrivers() []driver.Driver {
	mediadevicescamera.Initialize()
	return driver.GetManager().Query(driver.FilterVideoRecorder())
}

// Open selects the driver named by req.Device (first one when empty), settles
// on the supported mode closest to the request and starts the video reader.
// Frames are not delivered until StartCapture.
func (d *Device) Open(ctx context.Context, req ports.CaptureRequest) (ports.CaptureSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	drv, err := selectDriver(d.drivers(), req.Device)
	if err != nil {
		return nil, err
	}
	if drv.Status() == driver.StateClosed {
		if err := drv.Open(); err != nil {
			return nil, fmt.Errorf("open %s: %w", driverPath(drv), err)
		}
	}

	chosen, ok := negotiate(drv.Properties(), req)
	if !ok {
		_ = drv.Close()
		return nil, fmt.Errorf("%s: no video mode available", driverPath(drv))
	}
	rec, ok := drv.(driver.VideoRecorder)
	if !ok {
		_ = drv.Close()
		return nil, fmt.Errorf("%s: driver cannot record video", driverPath(drv))
	}
	reader, err := rec.VideoRecord(chosen)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("%s: start recording %dx%d: %w", driverPath(drv), chosen.Width, chosen.Height, err)
	}

	return newSession(drv, reader, formatOf(chosen), d.clk), nil
}

func selectDriver(drivers []driver.Driver, want string) (driver.Driver, error) {
	if len(drivers) == 0 {
		return nil, fmt.Errorf("no video capture devices found")
	}
	drivers = sortedDrivers(drivers)
	if want == "" {
		return drivers[0], nil
	}
	if resolved, err := filepath.EvalSymlinks(want); err == nil {
		want = resolved
	}
	base := filepath.Base(want)
	for _, drv := range drivers {
		if drv.ID() == want {
			return drv, nil
		}
		for _, label := range strings.Split(drv.Info().Label, mediadevicescamera.LabelSeparator) {
			if label == want || label == base || filepath.Base(label) == base {
				return drv, nil
			}
		}
	}
	return nil, fmt.Errorf("video capture device %q not found", want)
}

// driverPath is the device path mediadevices reports as the first label part.
func driverPath(drv driver.Driver) string {
	return strings.Split(drv.Info().Label, mediadevicescamera.LabelSeparator)[0]
}

// DeviceInfo describes one camera found by Discover.
type DeviceInfo struct {
	Path   string
	Name   string
	Status string
	Modes  []ports.CaptureFormat
}

// Discover lists the local cameras and the modes they advertise. Devices that
// are in use or cannot be queried are skipped.
func Discover() []DeviceInfo {
	return discover(videoDrivers())
}

// sortedDrivers orders a copy of drivers by descending priority, then device
// path, then driver id. The manager returns drivers in map order.
func sortedDrivers(drivers []driver.Driver) []driver.Driver {
	out := make([]driver.Driver, len(drivers))
	copy(out, drivers)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Info().Priority, out[j].Info().Priority
		if pi != pj {
			return pi > pj
		}
		if a, b := driverPath(out[i]), driverPath(out[j]); a != b {
			return a < b
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

func discover(drivers []driver.Driver) []DeviceInfo {
	var out []DeviceInfo
	for _, drv := range sortedDrivers(drivers) {
		if drv.Status() == driver.StateRunning {
			continue
		}
		props, err := driverProperties(drv)
		if err != nil || len(props) == 0 {
			continue
		}
		info := DeviceInfo{
			Path:   driverPath(drv),
			Name:   strings.Split(drv.Info().Name, mediadevicescamera.LabelSeparator)[0],
			Status: string(drv.Status()),
		}
		for _, p := range props {
			info.Modes = append(info.Modes, formatOf(p))
		}
		out = append(out, info)
	}
	return out
}

func driverProperties(drv driver.Driver) (_ []prop.Media, err error) {
	if drv.Status() == driver.StateClosed {
		if err := drv.Open(); err != nil {
			return nil, err
		}
		defer func() {
			if cerr := drv.Close(); err == nil {
				err = cerr
			}
		}()
	}
	return drv.Properties(), nil
}

func formatOf(p prop.Media) ports.CaptureFormat {
	return ports.CaptureFormat{
		Width:       p.Width,
		Height:      p.Height,
		FrameRate:   float64(p.FrameRate),
		PixelFormat: string(p.FrameFormat),
	}
}
