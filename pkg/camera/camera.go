package camera

import (
	"fmt"
)

type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// FPSRange bounds the preview frame rate, in frames per second.
type FPSRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r FPSRange) Valid() bool {
	return r.Min > 0 && r.Min <= r.Max
}

type PictureFormat string

const FormatJPEG PictureFormat = "jpeg"

type Parameters struct {
	PreviewSize   Size          `json:"previewSize"`
	PictureSize   Size          `json:"pictureSize"`
	PreviewFPS    FPSRange      `json:"previewFps"`
	PictureFormat PictureFormat `json:"pictureFormat"`
	JPEGQuality   int           `json:"jpegQuality"`
}

// Surface is where a device draws its preview frames.
type Surface interface {
	Present(frame []byte)
}

type EventKind int

const (
	EventFocus EventKind = iota + 1
	EventShutter
	EventRawPicture
	EventPicture
)

func (k EventKind) String() string {
	switch k {
	case EventFocus:
		return "focus"
	case EventShutter:
		return "shutter"
	case EventRawPicture:
		return "raw_picture"
	case EventPicture:
		return "picture"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is reported by a Device while it serves an autofocus or picture request.
type Event struct {
	Kind EventKind
	// Success is the autofocus outcome.
	Success bool
	// Data holds the picture bytes of EventRawPicture and EventPicture. Raw data may be nil.
	Data []byte
	// Err ends the request early.
	Err error
}

type Callback func(Event)

// Driver enumerates and opens camera devices.
type Driver interface {
	NumberOfCameras() int
	Open(id int) (Device, error)
}

// Device is an open camera. Implementations must be safe for concurrent use.
//
// AutoFocus and TakePicture return once the request is issued and report through cb.
// A picture request reports EventShutter, EventRawPicture and EventPicture, in that order,
// and leaves the preview stopped.
type Device interface {
	Parameters() (Parameters, error)
	SetParameters(p Parameters) error
	SetDisplayOrientation(degrees int) error
	SetPreviewDisplay(s Surface) error
	StartPreview() error
	StopPreview() error
	AutoFocus(cb Callback) error
	TakePicture(cb Callback) error
	Release() error
}
