// Package fake is a camera driver that needs no hardware. It serves gradient test
// pictures and counts every call, for development machines and tests.
package fake

import (
	"errors"
	"sync"
	"time"

	"netcamera/pkg/camera"
	"netcamera/pkg/utils/image"
)

var ErrReleased = errors.New("fake: device released")

type Driver struct {
	lock sync.Mutex

	// Cameras is the number of cameras reported.
	Cameras int
	// FocusFails makes every autofocus report failure.
	FocusFails bool
	// OpenErr is returned by Open when set.
	OpenErr error
	// OrientationErr is returned by SetDisplayOrientation when set.
	OrientationErr error
	// StartErr is returned by StartPreview when set.
	StartErr error
	// PictureErr ends picture requests with an error after the shutter event.
	PictureErr error

	devices []*Device
}

func New() *Driver {
	return &Driver{Cameras: 1}
}

func (d *Driver) NumberOfCameras() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.Cameras
}

func (d *Driver) Open(id int) (camera.Device, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	dev := &Device{
		driver: d,
		id:     id,
		params: camera.Parameters{
			PreviewSize:   camera.Size{Width: 640, Height: 480},
			PictureSize:   camera.Size{Width: 640, Height: 480},
			PreviewFPS:    camera.FPSRange{Min: 15, Max: 30},
			PictureFormat: camera.FormatJPEG,
			JPEGQuality:   90,
		},
	}
	d.devices = append(d.devices, dev)
	return dev, nil
}

// Opened returns how many devices were opened.
func (d *Driver) Opened() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.devices)
}

// Last returns the most recently opened device.
func (d *Driver) Last() *Device {
	d.lock.Lock()
	defer d.lock.Unlock()
	if len(d.devices) == 0 {
		return nil
	}
	return d.devices[len(d.devices)-1]
}

func (d *Driver) config() (focusFails bool, startErr, pictureErr error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.FocusFails, d.StartErr, d.PictureErr
}

func (d *Driver) orientationErr() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.OrientationErr
}

type Device struct {
	driver *Driver
	id     int

	lock        sync.Mutex
	params      camera.Parameters
	orientation int
	surface     camera.Surface
	previewing  bool
	released    bool
	stopPreview chan struct{}

	setParams int
	starts    int
	stops     int
	focuses   int
	pictures  int
}

func (d *Device) Parameters() (camera.Parameters, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.released {
		return camera.Parameters{}, ErrReleased
	}
	return d.params, nil
}

func (d *Device) SetParameters(p camera.Parameters) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.released {
		return ErrReleased
	}
	if !p.PreviewSize.Valid() || !p.PictureSize.Valid() || !p.PreviewFPS.Valid() {
		return errors.New("fake: invalid parameters")
	}
	d.params = p
	d.setParams++
	return nil
}

func (d *Device) SetDisplayOrientation(degrees int) error {
	err := d.driver.orientationErr()
	d.lock.Lock()
	defer d.lock.Unlock()
	if err != nil {
		return err
	}
	if degrees%90 != 0 {
		return errors.New("fake: orientation must be a multiple of 90")
	}
	d.orientation = degrees
	return nil
}

func (d *Device) SetPreviewDisplay(s camera.Surface) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.surface = s
	return nil
}

func (d *Device) StartPreview() error {
	_, startErr, _ := d.driver.config()
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.released {
		return ErrReleased
	}
	if startErr != nil {
		return startErr
	}
	d.starts++
	if d.previewing {
		return nil
	}
	d.previewing = true
	if d.surface != nil {
		d.stopPreview = make(chan struct{})
		go present(d.surface, d.params.PreviewSize, d.params.PreviewFPS.Max, d.stopPreview)
	}
	return nil
}

func (d *Device) StopPreview() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.stops++
	d.haltPreview()
	return nil
}

func (d *Device) haltPreview() {
	d.previewing = false
	if d.stopPreview != nil {
		close(d.stopPreview)
		d.stopPreview = nil
	}
}

func (d *Device) AutoFocus(cb camera.Callback) error {
	focusFails, _, _ := d.driver.config()
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.released {
		return ErrReleased
	}
	d.focuses++
	go cb(camera.Event{Kind: camera.EventFocus, Success: !focusFails})
	return nil
}

func (d *Device) TakePicture(cb camera.Callback) error {
	_, _, pictureErr := d.driver.config()
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.released {
		return ErrReleased
	}
	d.pictures++
	d.haltPreview()
	size, quality, seed := d.params.PictureSize, d.params.JPEGQuality, d.pictures

	go func() {
		cb(camera.Event{Kind: camera.EventShutter})
		if pictureErr != nil {
			cb(camera.Event{Kind: camera.EventRawPicture, Err: pictureErr})
			return
		}
		data, err := image.EncodeJPEGBytes(image.Gradient(size.Width, size.Height, seed), quality)
		if err != nil {
			cb(camera.Event{Kind: camera.EventRawPicture, Err: err})
			return
		}
		cb(camera.Event{Kind: camera.EventRawPicture})
		cb(camera.Event{Kind: camera.EventPicture, Data: data})
	}()
	return nil
}

func (d *Device) Release() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.haltPreview()
	d.released = true
	return nil
}

// Counters for tests.

func (d *Device) Previewing() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.previewing
}

func (d *Device) Released() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.released
}

func (d *Device) Orientation() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.orientation
}

func (d *Device) SetParametersCalls() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.setParams
}

func (d *Device) Starts() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.starts
}

func (d *Device) Stops() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stops
}

func (d *Device) Focuses() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.focuses
}

func (d *Device) Pictures() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.pictures
}

// present draws preview frames until stop is closed. The frame is encoded once.
func present(s camera.Surface, size camera.Size, fps int, stop <-chan struct{}) {
	if fps <= 0 {
		fps = 1
	}
	frame, err := image.EncodeJPEGBytes(image.Gradient(size.Width, size.Height, 0), 75)
	if err != nil {
		return
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.Present(frame)
		}
	}
}
