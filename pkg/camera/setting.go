package camera

import (
	"go.uber.org/zap"

	"netcamera/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

const (
	DefaultCameraID    = 0
	DefaultRotation    = 90
	DefaultJPEGQuality = 85
)

var DefaultFPS = FPSRange{Min: 4, Max: 10}

// Options are the fixed capture parameters applied when the surface becomes ready.
type Options struct {
	CameraID int
	// Screen is the display size in pixels; preview and pictures use it.
	Screen      Size
	Rotation    int
	FPS         FPSRange
	JPEGQuality int
}

func DefaultOptions(screen Size) Options {
	return Options{
		CameraID:    DefaultCameraID,
		Screen:      screen,
		Rotation:    DefaultRotation,
		FPS:         DefaultFPS,
		JPEGQuality: DefaultJPEGQuality,
	}
}

func (o Options) apply(p Parameters) Parameters {
	p.PreviewSize = o.Screen
	p.PreviewFPS = o.FPS
	p.PictureFormat = FormatJPEG
	p.JPEGQuality = o.JPEGQuality
	p.PictureSize = o.Screen
	return p
}
