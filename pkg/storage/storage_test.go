package storage

import (
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"netcamera/pkg/utils/image"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time {
	return time.Time(c)
}

type stateVolume struct {
	root  string
	state string
}

func (v stateVolume) Root() string           { return v.root }
func (v stateVolume) State() (string, error) { return v.state, nil }

var moment = time.Date(2024, 5, 1, 13, 4, 5, 0, time.Local)

func newPicture(t *testing.T) []byte {
	t.Helper()
	data, err := image.EncodeJPEGBytes(image.Gradient(32, 24, 1), 85)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestFileName(t *testing.T) {
	dir := t.TempDir()
	s, err := New(NewDirVolume(dir), WithClock(fixedClock(moment)))
	checkErr(t, err)

	name, err := s.FileName()
	checkErr(t, err)
	want := filepath.Join(dir, "2024-05-01 13:04:05.JPG")
	if name != want {
		t.Fatalf("name = %q, want %q", name, want)
	}

	name, err = s.FileNameExt(DefaultVideoExt)
	checkErr(t, err)
	if want = filepath.Join(dir, "2024-05-01 13:04:05.avi"); name != want {
		t.Fatalf("video name = %q, want %q", name, want)
	}
}

func TestPersist(t *testing.T) {
	dir := t.TempDir()
	s, err := New(NewDirVolume(dir), WithClock(fixedClock(moment)))
	checkErr(t, err)

	name, err := s.Persist(newPicture(t))
	checkErr(t, err)

	f, err := os.Open(name)
	checkErr(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	checkErr(t, err)
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Fatalf("bounds = %v, want 32x24", b)
	}
}

func TestPersistNotMounted(t *testing.T) {
	dir := t.TempDir()
	s, err := New(stateVolume{root: dir, state: MediaRemoved})
	checkErr(t, err)

	if _, err = s.Persist(newPicture(t)); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("err = %v, want ErrNotMounted", err)
	}
	assertEmpty(t, dir)
}

func TestPersistInvalidPicture(t *testing.T) {
	dir := t.TempDir()
	s, err := New(NewDirVolume(dir))
	checkErr(t, err)

	if _, err = s.Persist([]byte("garbage")); err == nil {
		t.Fatal("expected decode error")
	}
	assertEmpty(t, dir)
}

func TestDirVolumeState(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		root string
		want string
	}{
		{dir, MediaMounted},
		{filepath.Join(dir, "missing"), MediaRemoved},
	}
	for _, tt := range tests {
		got, err := NewDirVolume(tt.root).State()
		checkErr(t, err)
		if got != tt.want {
			t.Errorf("State(%s) = %s, want %s", tt.root, got, tt.want)
		}
	}
}

func TestMountVolumeNotMountPoint(t *testing.T) {
	state, err := NewMountVolume(t.TempDir()).State()
	checkErr(t, err)
	if state == MediaMounted {
		t.Fatal("a plain temp dir should not count as a mounted volume")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(NewDirVolume(t.TempDir()), WithQuality(0)); err == nil {
		t.Fatal("expected error for quality 0")
	}
}

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	checkErr(t, err)
	if len(entries) != 0 {
		t.Fatalf("expected no files, found %d", len(entries))
	}
}

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
