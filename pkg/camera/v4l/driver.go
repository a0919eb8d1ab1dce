// Package v4l drives Linux V4L2 cameras through go4vl.
package v4l

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vladimirvivien/go4vl/v4l2"
	"go.uber.org/zap"

	"netcamera/pkg/camera"
	"netcamera/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

const (
	DefaultDevicePattern = "/dev/video%d"
	DefaultFPS           = 15
	DefaultJPEGQuality   = 90

	maxCameras        = 64
	startRetries      = 5
	focusPollInterval = 50 * time.Millisecond
)

// Camera controls, see linux/v4l2-controls.h.
const (
	CtrlRotate          v4l2.CtrlID = 0x00980922 // V4L2_CID_ROTATE
	CtrlAutoFocusStart  v4l2.CtrlID = 0x009a091c // V4L2_CID_AUTO_FOCUS_START
	CtrlAutoFocusStatus v4l2.CtrlID = 0x009a091d // V4L2_CID_AUTO_FOCUS_STATUS
	CtrlJPEGQuality     v4l2.CtrlID = 0x009d0903 // V4L2_CID_JPEG_COMPRESSION_QUALITY

	AutoFocusStatusBusy    = 1 << 0
	AutoFocusStatusReached = 1 << 1
	AutoFocusStatusFailed  = 1 << 2
)

type Options struct {
	// DevicePattern maps a camera id to a device node, e.g. "/dev/video%d".
	DevicePattern  string
	FocusTimeout   time.Duration
	PictureTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		DevicePattern:  DefaultDevicePattern,
		FocusTimeout:   3 * time.Second,
		PictureTimeout: 10 * time.Second,
	}
}

type Driver struct {
	ctx  context.Context
	opts Options
}

func New(ctx context.Context, opts Options) *Driver {
	if opts.DevicePattern == "" {
		opts.DevicePattern = DefaultDevicePattern
	}
	return &Driver{ctx: ctx, opts: opts}
}

// NumberOfCameras counts consecutive device nodes starting at id 0.
func (d *Driver) NumberOfCameras() int {
	n := 0
	for ; n < maxCameras; n++ {
		if _, err := os.Stat(d.devName(n)); err != nil {
			break
		}
	}
	return n
}

func (d *Driver) Open(id int) (camera.Device, error) {
	name := d.devName(id)
	info, err := os.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("camera %d: %w", id, err)
	}
	if info.Mode()&os.ModeDevice == 0 {
		return nil, fmt.Errorf("camera %d: %s is not a device", id, name)
	}
	logger.Infof("open camera %d at %s", id, filepath.Clean(name))

	return newDevice(d.ctx, name, d.opts), nil
}

func (d *Driver) devName(id int) string {
	return fmt.Sprintf(d.opts.DevicePattern, id)
}
