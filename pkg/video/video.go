// Package video records the live preview into an MJPEG AVI file.
package video

import (
	"errors"
	"fmt"
	"sync"

	"github.com/icza/mjpeg"

	"netcamera/pkg/utils"
)

var logger = utils.GetLogger()

var ErrRecording = errors.New("a recording is already running")

type Builder struct {
	width  int
	height int
	fps    int

	cnt int
	aw  mjpeg.AviWriter
}

func NewBuilder(path string, width, height, fps int) (*Builder, error) {
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, err
	}

	return &Builder{
		width:  width,
		height: height,
		fps:    fps,
		aw:     aw,
	}, nil
}

// Add appends one JPEG frame.
func (b *Builder) Add(frame []byte) error {
	err := b.aw.AddFrame(frame)
	if err != nil {
		return err
	}
	b.cnt++

	return nil
}

func (b *Builder) Close() error {
	return b.aw.Close()
}

func (b *Builder) GetCnt() int {
	return b.cnt
}

// Source hands out preview frames, see preview.Broadcaster.
type Source interface {
	Subscribe() (<-chan []byte, func())
}

// Recording describes a finished or running recording.
type Recording struct {
	Path   string `json:"path"`
	Frames int    `json:"frames"`
}

type Recorder struct {
	lock        sync.Mutex
	builder     *Builder
	path        string
	unsubscribe func()
	done        chan struct{}
	frames      int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start writes every frame of src to path until Stop is called.
func (r *Recorder) Start(src Source, path string, width, height, fps int) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.builder != nil {
		return ErrRecording
	}
	b, err := NewBuilder(path, width, height, fps)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	frames, unsubscribe := src.Subscribe()
	r.builder = b
	r.path = path
	r.unsubscribe = unsubscribe
	r.done = make(chan struct{})
	r.frames = 0
	go r.record(b, frames, r.done)
	logger.Infof("recording %dx%d@%d to %s", width, height, fps, path)

	return nil
}

func (r *Recorder) record(b *Builder, frames <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for frame := range frames {
		if err := b.Add(frame); err != nil {
			logger.Warnf("record frame: %s", err)
			continue
		}
		r.lock.Lock()
		if r.builder == b {
			r.frames = b.GetCnt()
		}
		r.lock.Unlock()
	}
}

// Stop ends the running recording and finalizes the file.
func (r *Recorder) Stop() (Recording, error) {
	r.lock.Lock()
	b, unsubscribe, done, path := r.builder, r.unsubscribe, r.done, r.path
	r.builder = nil
	r.unsubscribe = nil
	r.lock.Unlock()
	if b == nil {
		return Recording{}, errors.New("no recording is running")
	}

	unsubscribe()
	<-done

	rec := Recording{Path: path, Frames: b.GetCnt()}
	if err := b.Close(); err != nil {
		return rec, fmt.Errorf("close %s: %w", path, err)
	}
	logger.Infof("recorded %d frames to %s", rec.Frames, rec.Path)

	return rec, nil
}

// Current returns the running recording, if any.
func (r *Recorder) Current() (Recording, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.builder == nil {
		return Recording{}, false
	}
	return Recording{Path: r.path, Frames: r.frames}, true
}
