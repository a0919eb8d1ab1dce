// Package preview is the display surface of the camera: preview frames are fanned out
// to every connected MJPEG viewer.
package preview

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

const subscriberBuffer = 2

type Broadcaster struct {
	lock    sync.RWMutex
	clients map[chan []byte]struct{}
	frames  atomic.Uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan []byte]struct{})}
}

// Present hands frame to every subscriber. Slow subscribers miss frames.
func (b *Broadcaster) Present(frame []byte) {
	b.frames.Add(1)

	b.lock.RLock()
	defer b.lock.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Subscribe returns a frame channel and the function that releases it.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	b.lock.Lock()
	b.clients[ch] = struct{}{}
	b.lock.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.lock.Lock()
			delete(b.clients, ch)
			b.lock.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Viewers() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.clients)
}

// Frames counts presented frames.
func (b *Broadcaster) Frames() uint64 {
	return b.frames.Load()
}

// ServeHTTP streams the preview as multipart/x-mixed-replace JPEG parts.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	frames, unsubscribe := b.Subscribe()
	defer unsubscribe()

	mimeWriter := multipart.NewWriter(w)
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mimeWriter.Boundary()))
	partHeader := make(textproto.MIMEHeader)
	partHeader.Add("Content-Type", "image/jpeg")
	rc := http.NewResponseController(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			partWriter, err := mimeWriter.CreatePart(partHeader)
			if err != nil {
				logger.Warnf("preview: create part: %s", err)
				return
			}
			if _, err = partWriter.Write(frame); err != nil {
				logger.Debugf("preview: write frame: %s", err)
				return
			}
			if err = rc.Flush(); err != nil {
				logger.Debugf("preview: flush: %s", err)
			}
		}
	}
}

// ServeMJPEG streams the preview to a gin client.
func (b *Broadcaster) ServeMJPEG(c *gin.Context) {
	b.ServeHTTP(c.Writer, c.Request)
}
