package preview

import (
	"bufio"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Present([]byte("frame"))

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case f := <-ch:
			if string(f) != "frame" {
				t.Errorf("subscriber %d: frame = %q", i, f)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timeout", i)
		}
	}
	if b.Frames() != 1 {
		t.Errorf("frames = %d, want 1", b.Frames())
	}
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	_, unsub := b.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			b.Present([]byte{byte(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Present blocked on a full subscriber")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if b.Viewers() != 0 {
		t.Errorf("viewers = %d, want 0", b.Viewers())
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for b.Viewers() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		b.Present([]byte("jpeg-bytes"))
	}()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(mediaType, "multipart/x-mixed-replace") {
		t.Fatalf("content type = %s", mediaType)
	}
	part, err := multipart.NewReader(bufio.NewReader(resp.Body), params["boundary"]).NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if part.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("part content type = %s", part.Header.Get("Content-Type"))
	}
	buf := make([]byte, len("jpeg-bytes"))
	if _, err := io.ReadFull(part, buf); err != nil || string(buf) != "jpeg-bytes" {
		t.Errorf("part = %q, err = %v", buf, err)
	}
}
