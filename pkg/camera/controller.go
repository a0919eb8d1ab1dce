package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"netcamera/pkg/notify"
	"netcamera/pkg/storage"
)

const NoStorageNotice = "No SD card detected, insert an SD card and try again"

var (
	ErrNoCamera          = errors.New("no camera available")
	ErrCameraNotOpen     = errors.New("camera is not open")
	ErrCaptureInProgress = errors.New("a capture is already in progress")
	ErrFocusFailed       = errors.New("autofocus failed")
	ErrSurfaceDestroyed  = errors.New("surface destroyed during capture")
	ErrClosed            = errors.New("controller closed")
)

// Persister stores a captured picture and returns where it went.
type Persister interface {
	Persist(data []byte) (string, error)
}

type Result struct {
	ID   string
	Path string
	Err  error
}

type Status struct {
	State      string      `json:"state"`
	Previewing bool        `json:"previewing"`
	CameraOpen bool        `json:"cameraOpen"`
	Captures   int         `json:"captures"`
	LastPath   string      `json:"lastPath,omitempty"`
	Parameters *Parameters `json:"parameters,omitempty"`
}

type capture struct {
	id      string
	started time.Time
	done    chan Result
}

// Controller owns the camera device and drives the capture sequence
//
//	idle -> awaiting_focus -> capturing_shutter -> capturing_raw -> capturing_final
//	     -> persisting_image -> idle
//
// Every operation and every device callback runs on a single loop goroutine, so the
// fields below the loop are never shared.
type Controller struct {
	ctx      context.Context
	driver   Driver
	store    Persister
	notifier notify.Notifier
	opts     Options

	loop *loop

	dev        Device
	previewing bool
	fsm        *fsm.FSM
	inflight   *capture
	captures   int
	lastPath   string
}

// NewController starts the controller loop. The loop releases the camera and stops
// when ctx ends.
func NewController(ctx context.Context, driver Driver, store Persister, notifier notify.Notifier, opts Options) *Controller {
	c := &Controller{
		ctx:      ctx,
		driver:   driver,
		store:    store,
		notifier: notifier,
		opts:     opts,
		loop:     newLoop(),
		fsm:      newCaptureFSM(),
	}
	go c.run()

	return c
}

// Done is closed once the loop has stopped and the camera is released.
func (c *Controller) Done() <-chan struct{} {
	return c.loop.done
}

// SurfaceReady opens the camera, applies the capture parameters and starts previewing
// on surface. It does nothing while a preview is already running.
func (c *Controller) SurfaceReady(ctx context.Context, surface Surface) error {
	var err error
	if e := c.do(ctx, func() { err = c.surfaceReady(surface) }); e != nil {
		return e
	}
	return err
}

// SurfaceDestroyed stops the preview and releases the camera, if one is open.
func (c *Controller) SurfaceDestroyed(ctx context.Context) error {
	var err error
	if e := c.do(ctx, func() { err = c.surfaceDestroyed() }); e != nil {
		return e
	}
	return err
}

// Request starts a capture and returns the channel its result is delivered on.
func (c *Controller) Request(ctx context.Context) (<-chan Result, error) {
	var (
		ch  <-chan Result
		err error
	)
	if e := c.do(ctx, func() { ch, err = c.startCapture() }); e != nil {
		return nil, e
	}
	return ch, err
}

// Capture focuses, takes a picture and waits until it is stored and the preview is back.
func (c *Controller) Capture(ctx context.Context) (string, error) {
	ch, err := c.Request(ctx)
	if err != nil {
		return "", err
	}
	select {
	case r := <-ch:
		return r.Path, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Controller) Status(ctx context.Context) (Status, error) {
	var s Status
	err := c.do(ctx, func() {
		s = Status{
			State:      c.fsm.Current(),
			Previewing: c.previewing,
			CameraOpen: c.dev != nil,
			Captures:   c.captures,
			LastPath:   c.lastPath,
		}
		if c.dev != nil {
			if p, err := c.dev.Parameters(); err == nil {
				s.Parameters = &p
			}
		}
	})
	return s, err
}

func (c *Controller) run() {
	defer close(c.loop.done)
	for {
		select {
		case <-c.ctx.Done():
			c.loop.close()
			c.shutdown()
			return
		case <-c.loop.wake:
			for _, fn := range c.loop.drain() {
				fn()
			}
		}
	}
}

func (c *Controller) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !c.loop.post(func() {
		fn()
		close(done)
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.loop.done:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

func (c *Controller) surfaceReady(surface Surface) error {
	if c.previewing {
		logger.Debug("surface ready: already previewing")
		return nil
	}
	if c.dev == nil {
		n := c.driver.NumberOfCameras()
		logger.Infof("number of cameras: %d", n)
		if c.opts.CameraID >= n {
			return fmt.Errorf("%w: camera %d requested, %d present", ErrNoCamera, c.opts.CameraID, n)
		}
		dev, err := c.driver.Open(c.opts.CameraID)
		if err != nil {
			logger.Errorf("open camera %d: %s", c.opts.CameraID, err)
			return fmt.Errorf("open camera %d: %w", c.opts.CameraID, err)
		}
		c.dev = dev
	}

	if err := c.configure(surface); err != nil {
		// the device stays open in whatever state the driver left it
		logger.Errorf("init camera: %s", err)
		return err
	}
	c.previewing = true
	logger.Infof("preview started at %s", c.opts.Screen)

	return nil
}

// configure applies every setting, so a retry after a failure starts from scratch.
func (c *Controller) configure(surface Surface) error {
	if err := c.dev.SetDisplayOrientation(c.opts.Rotation); err != nil {
		return fmt.Errorf("set display orientation: %w", err)
	}
	params, err := c.dev.Parameters()
	if err != nil {
		return fmt.Errorf("get parameters: %w", err)
	}
	if err = c.dev.SetParameters(c.opts.apply(params)); err != nil {
		return fmt.Errorf("set parameters: %w", err)
	}
	if err = c.dev.SetPreviewDisplay(surface); err != nil {
		return fmt.Errorf("set preview display: %w", err)
	}
	if err = c.dev.StartPreview(); err != nil {
		return fmt.Errorf("start preview: %w", err)
	}

	return nil
}

func (c *Controller) surfaceDestroyed() error {
	if c.dev == nil {
		return nil
	}
	if c.inflight != nil {
		c.fsm.SetState(StateIdle)
		c.finish(Result{Err: ErrSurfaceDestroyed})
	}

	var errs []error
	if c.previewing {
		if err := c.dev.StopPreview(); err != nil {
			errs = append(errs, fmt.Errorf("stop preview: %w", err))
		}
	}
	if err := c.dev.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release camera: %w", err))
	}
	c.dev = nil
	c.previewing = false

	err := errors.Join(errs...)
	if err != nil {
		logger.Warnf("surface destroyed: %s", err)
	} else {
		logger.Info("camera released")
	}
	return err
}

func (c *Controller) shutdown() {
	if c.inflight != nil {
		c.fsm.SetState(StateIdle)
		c.finish(Result{Err: ErrClosed})
	}
	_ = c.surfaceDestroyed()
}

func (c *Controller) startCapture() (<-chan Result, error) {
	if c.dev == nil {
		logger.Debug("capture: camera not open")
		return nil, ErrCameraNotOpen
	}
	if !c.fsm.Can(evCapture) {
		return nil, ErrCaptureInProgress
	}
	if err := c.fsm.Event(context.Background(), evCapture); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	cp := &capture{
		id:      uuid.NewString(),
		started: time.Now(),
		done:    make(chan Result, 1),
	}
	c.inflight = cp
	logger.Infof("capture %s: autofocus", cp.id)
	if err := c.dev.AutoFocus(c.callback(cp.id)); err != nil {
		c.abort(fmt.Errorf("request autofocus: %w", err))
	}

	return cp.done, nil
}

func (c *Controller) callback(id string) Callback {
	return func(ev Event) {
		c.loop.post(func() { c.handle(id, ev) })
	}
}

// handle is the single entry point for device events of the capture identified by id.
func (c *Controller) handle(id string, ev Event) {
	if c.inflight == nil || c.inflight.id != id {
		logger.Debugf("capture %s: drop stale %s event", id, ev.Kind)
		return
	}
	if ev.Err != nil {
		c.abort(fmt.Errorf("%s: %w", ev.Kind, ev.Err))
		return
	}

	switch ev.Kind {
	case EventFocus:
		logger.Infof("capture %s: autofocus success=%t", id, ev.Success)
		if !ev.Success {
			if c.step(evFocusFailed) {
				c.finish(Result{Err: ErrFocusFailed})
			}
			return
		}
		if !c.step(evFocusSucceeded) {
			return
		}
		if err := c.dev.TakePicture(c.callback(id)); err != nil {
			c.abort(fmt.Errorf("take picture: %w", err))
		}
	case EventShutter:
		if c.step(evShutter) {
			logger.Infof("capture %s: shutter", id)
		}
	case EventRawPicture:
		if c.step(evRawPicture) {
			logger.Infof("capture %s: raw picture (%s)", id, humanize.Bytes(uint64(len(ev.Data))))
		}
	case EventPicture:
		if !c.step(evPicture) {
			return
		}
		logger.Infof("capture %s: picture (%s)", id, humanize.Bytes(uint64(len(ev.Data))))
		c.persist(id, ev.Data)
	default:
		logger.Warnf("capture %s: unknown event %s", id, ev.Kind)
	}
}

// step fires event, aborting the capture when the device reports out of order.
func (c *Controller) step(event string) bool {
	if err := c.fsm.Event(context.Background(), event); err != nil {
		c.abort(fmt.Errorf("unexpected %s: %w", event, err))
		return false
	}
	return true
}

func (c *Controller) abort(err error) {
	state := c.fsm.Current()
	if c.inflight != nil {
		logger.Errorf("capture %s: %s", c.inflight.id, err)
	}
	if e := c.fsm.Event(context.Background(), evAbort); e != nil {
		c.fsm.SetState(StateIdle)
	}
	if stopsPreview(state) {
		c.resumePreview()
	}
	c.finish(Result{Err: err})
}

// persist writes the picture off the loop; the loop resumes once the write attempt is over.
func (c *Controller) persist(id string, data []byte) {
	go func() {
		path, err := c.store.Persist(data)
		if !c.loop.post(func() { c.persisted(id, path, err) }) {
			logger.Warnf("capture %s: controller closed while storing the picture", id)
		}
	}()
}

func (c *Controller) persisted(id, path string, err error) {
	if c.inflight == nil || c.inflight.id != id {
		logger.Debugf("capture %s: drop stale result", id)
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotMounted):
		logger.Warnf("capture %s: %s", id, err)
		c.notify(notify.Long, NoStorageNotice)
	case err != nil:
		logger.Errorf("capture %s: save picture: %s", id, err)
	default:
		c.captures++
		c.lastPath = path
		c.notify(notify.Short, "Photo saved to "+path)
	}

	c.resumePreview()
	if e := c.fsm.Event(context.Background(), evPersisted); e != nil {
		logger.Warnf("capture %s: %s", id, e)
		c.fsm.SetState(StateIdle)
	}
	c.finish(Result{Path: path, Err: err})
}

func (c *Controller) resumePreview() {
	if c.dev == nil {
		return
	}
	if err := c.dev.StopPreview(); err != nil {
		logger.Warnf("stop preview: %s", err)
	}
	if err := c.dev.StartPreview(); err != nil {
		logger.Errorf("resume preview: %s", err)
		c.previewing = false
		return
	}
	c.previewing = true
}

func (c *Controller) finish(r Result) {
	cp := c.inflight
	if cp == nil {
		return
	}
	c.inflight = nil
	r.ID = cp.id
	if r.Err != nil {
		logger.Infof("capture %s: ended after %s: %s", cp.id, time.Since(cp.started), r.Err)
	} else {
		logger.Infof("capture %s: done in %s", cp.id, time.Since(cp.started))
	}
	cp.done <- r
}

func (c *Controller) notify(d notify.Duration, text string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(notify.Notice{Text: text, Duration: d, Time: time.Now()})
}
