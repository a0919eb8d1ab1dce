package v4l

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"netcamera/pkg/camera"
)

var (
	ErrReleased   = errors.New("device released")
	ErrNotStarted = errors.New("preview not started")
)

// Device is a V4L2 camera. The stream is reopened for every format change because
// the pixel format can only be chosen while the device is closed.
type Device struct {
	devName string
	ctx     context.Context
	opts    Options

	lock        sync.Mutex
	cancel      context.CancelFunc
	camera      *device.Device
	pumpDone    chan struct{}
	params      camera.Parameters
	orientation int
	surface     camera.Surface
	busy        bool
	released    bool
}

func newDevice(ctx context.Context, devName string, opts Options) *Device {
	return &Device{
		ctx:     ctx,
		devName: devName,
		opts:    opts,
		params: camera.Parameters{
			PreviewSize:   camera.Size{Width: 640, Height: 480},
			PictureSize:   camera.Size{Width: 640, Height: 480},
			PreviewFPS:    camera.FPSRange{Min: 1, Max: DefaultFPS},
			PictureFormat: camera.FormatJPEG,
			JPEGQuality:   DefaultJPEGQuality,
		},
	}
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
	if !p.PreviewSize.Valid() || !p.PictureSize.Valid() {
		return fmt.Errorf("invalid sizes: preview %s, picture %s", p.PreviewSize, p.PictureSize)
	}
	if !p.PreviewFPS.Valid() {
		return fmt.Errorf("invalid fps range [%d,%d]", p.PreviewFPS.Min, p.PreviewFPS.Max)
	}
	if p.PictureFormat != camera.FormatJPEG {
		return fmt.Errorf("unsupported picture format %q", p.PictureFormat)
	}
	if p.JPEGQuality < 1 || p.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d out of range [1,100]", p.JPEGQuality)
	}
	d.params = p
	return nil
}

func (d *Device) SetDisplayOrientation(degrees int) error {
	if degrees%90 != 0 {
		return fmt.Errorf("orientation %d is not a multiple of 90", degrees)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	d.orientation = (degrees%360 + 360) % 360
	return nil
}

func (d *Device) SetPreviewDisplay(s camera.Surface) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.surface = s
	return nil
}

func (d *Device) StartPreview() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.released {
		return ErrReleased
	}
	if d.camera != nil {
		return nil
	}

	frames, err := d.startRetry(d.params.PreviewSize, v4l2.PixelFmtMJPEG, 2, uint32(d.params.PreviewFPS.Max))
	if err != nil {
		return err
	}
	d.pumpDone = make(chan struct{})
	go pump(frames, d.surface, d.pumpDone)

	return nil
}

func (d *Device) StopPreview() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stop()
}

func (d *Device) AutoFocus(cb camera.Callback) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.released {
		return ErrReleased
	}
	if d.camera == nil {
		return ErrNotStarted
	}

	if err := d.camera.SetControlValue(CtrlAutoFocusStart, 1); err != nil {
		// 定焦摄像头没有自动对焦控制，视为对焦成功
		logger.Infof("%s: no autofocus control (%s), treating as focused", d.devName, err)
		go cb(camera.Event{Kind: camera.EventFocus, Success: true})
		return nil
	}

	fd := d.camera.Fd()
	go func() {
		cb(camera.Event{Kind: camera.EventFocus, Success: d.waitFocus(fd)})
	}()
	return nil
}

// waitFocus polls the autofocus status until the lens settles or the timeout expires.
func (d *Device) waitFocus(fd uintptr) bool {
	deadline := time.Now().Add(d.opts.FocusTimeout)
	for time.Now().Before(deadline) {
		ctrl, err := v4l2.GetControl(fd, CtrlAutoFocusStatus)
		if err != nil {
			logger.Warnf("%s: read autofocus status: %s", d.devName, err)
			return false
		}
		status := uint32(ctrl.Value)
		switch {
		case status&AutoFocusStatusFailed != 0:
			return false
		case status&AutoFocusStatusBusy == 0 && status&AutoFocusStatusReached != 0:
			return true
		}
		time.Sleep(focusPollInterval)
	}
	logger.Warnf("%s: autofocus timed out after %s", d.devName, d.opts.FocusTimeout)

	return false
}

// TakePicture stops the preview, reopens the device at the picture size in JPEG and
// reads a single frame.
func (d *Device) TakePicture(cb camera.Callback) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.released {
		return ErrReleased
	}
	if d.busy {
		return errors.New("picture already requested")
	}
	if err := d.stop(); err != nil {
		logger.Warnf("%s: stop preview before picture: %s", d.devName, err)
	}
	d.busy = true

	go d.takePicture(cb)
	return nil
}

func (d *Device) takePicture(cb camera.Callback) {
	defer func() {
		d.lock.Lock()
		d.busy = false
		d.lock.Unlock()
	}()

	d.lock.Lock()
	if d.released {
		d.lock.Unlock()
		cb(camera.Event{Kind: camera.EventShutter, Err: ErrReleased})
		return
	}
	frames, err := d.startRetry(d.params.PictureSize, v4l2.PixelFmtJPEG, 1, 0)
	d.lock.Unlock()
	if err != nil {
		cb(camera.Event{Kind: camera.EventShutter, Err: err})
		return
	}
	cb(camera.Event{Kind: camera.EventShutter})

	timer := time.NewTimer(d.opts.PictureTimeout)
	defer timer.Stop()

	var frame []byte
	select {
	case f, ok := <-frames:
		if !ok {
			err = errors.New("capture stream closed")
		} else {
			frame = append([]byte(nil), f...)
		}
	case <-timer.C:
		err = fmt.Errorf("no frame within %s", d.opts.PictureTimeout)
	}

	d.lock.Lock()
	if serr := d.stop(); serr != nil {
		logger.Warnf("%s: stop capture stream: %s", d.devName, serr)
	}
	d.lock.Unlock()

	if err != nil {
		cb(camera.Event{Kind: camera.EventRawPicture, Err: err})
		return
	}
	cb(camera.Event{Kind: camera.EventRawPicture, Data: frame})
	cb(camera.Event{Kind: camera.EventPicture, Data: frame})
}

func (d *Device) Release() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	err := d.stop()
	d.released = true
	return err
}

// startRetry opens and starts the stream, retrying while the driver still reports the
// previous stream as busy. The caller holds d.lock.
func (d *Device) startRetry(size camera.Size, pixFmt v4l2.FourCCType, buffers, fps uint32) (<-chan []byte, error) {
	var (
		frames <-chan []byte
		err    error
	)
	for i := 0; i < startRetries; i++ {
		frames, err = d.start(size, pixFmt, buffers, fps)
		if err == nil {
			return frames, nil
		}
		if !isBusyErr(err) {
			break
		}
		logger.Warnf("%s: device busy, will retry %d/%d: %v", d.devName, i+1, startRetries, err)
		time.Sleep(150 * time.Millisecond)
	}
	return nil, err
}

func (d *Device) start(size camera.Size, pixFmt v4l2.FourCCType, buffers, fps uint32) (<-chan []byte, error) {
	logger.Infof("start %s in %s", d.devName, size)
	opts := []device.Option{
		device.WithBufferSize(buffers),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: pixFmt,
			Width:       uint32(size.Width),
			Height:      uint32(size.Height),
			Field:       v4l2.FieldNone,
		}),
	}
	if fps > 0 {
		opts = append(opts, device.WithFPS(fps))
	}
	cam, err := device.Open(d.devName, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.devName, err)
	}

	ctx, cancel := context.WithCancel(d.ctx)
	if err = cam.Start(ctx); err != nil {
		cancel()
		_ = cam.Close()
		return nil, fmt.Errorf("start %s: %w", d.devName, err)
	}
	d.camera = cam
	d.cancel = cancel
	d.applyControls()

	return cam.GetOutput(), nil
}

// stop ends the current stream, if any. The caller holds d.lock.
func (d *Device) stop() error {
	if d.cancel != nil {
		// 先取消上下文，让底层流处理 goroutine 走到 ctx.Done 分支
		d.cancel()
		// 短暂等待，避免随即调用 Close() 时与底层 goroutine 并发执行
		time.Sleep(100 * time.Millisecond)
		d.cancel = nil
	}
	if d.pumpDone != nil {
		close(d.pumpDone)
		d.pumpDone = nil
	}
	if d.camera != nil {
		err := d.camera.Close()
		d.camera = nil
		return err
	}
	return nil
}

func (d *Device) applyControls() {
	settings := map[v4l2.CtrlID]v4l2.CtrlValue{
		CtrlRotate:      v4l2.CtrlValue(d.orientation),
		CtrlJPEGQuality: v4l2.CtrlValue(d.params.JPEGQuality),
	}
	for k, v := range settings {
		if err := d.camera.SetControlValue(k, v); err != nil {
			logger.Warnf("set ctrl(%d) to %d, err: %s", k, v, err)
		}
	}
}

// pump forwards preview frames to the surface until the stream ends or done is closed.
func pump(frames <-chan []byte, s camera.Surface, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if s == nil || len(frame) == 0 {
				continue
			}
			s.Present(append([]byte(nil), frame...))
		}
	}
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "busy") || strings.Contains(s, "ebusy")
}
