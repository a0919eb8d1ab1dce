package video

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"netcamera/pkg/preview"
	"netcamera/pkg/utils/image"
)

func jpegFrame(t *testing.T, seed int) []byte {
	t.Helper()
	data, err := image.EncodeJPEGBytes(image.Gradient(64, 48, seed), 80)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func waitFrames(t *testing.T, r *Recorder, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := r.Current(); ok && rec.Frames >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("recorder did not reach %d frames", n)
}

func TestRecordPreview(t *testing.T) {
	src := preview.NewBroadcaster()
	path := filepath.Join(t.TempDir(), "2024-01-02 03:04:05.avi")

	r := NewRecorder()
	if err := r.Start(src, path, 64, 48, 10); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(src, path, 64, 48, 10); !errors.Is(err, ErrRecording) {
		t.Errorf("second Start = %v, want ErrRecording", err)
	}

	for i := 1; i <= 3; i++ {
		src.Present(jpegFrame(t, i))
		waitFrames(t, r, i)
	}

	rec, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Frames != 3 || rec.Path != path {
		t.Errorf("recording = %+v", rec)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("empty avi")
	}
	if src.Viewers() != 0 {
		t.Errorf("viewers after stop = %d", src.Viewers())
	}
	if _, ok := r.Current(); ok {
		t.Error("recording still reported after stop")
	}
}

func TestStopWithoutRecording(t *testing.T) {
	if _, err := NewRecorder().Stop(); err == nil {
		t.Error("expected error")
	}
}
