package v4l

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"netcamera/pkg/camera"
)

func TestNumberOfCamerasMissing(t *testing.T) {
	d := New(context.Background(), Options{DevicePattern: filepath.Join(t.TempDir(), "video%d")})
	if n := d.NumberOfCameras(); n != 0 {
		t.Fatalf("cameras = %d, want 0", n)
	}
	if _, err := d.Open(0); err == nil {
		t.Fatal("expected error opening a missing device")
	}
}

func TestDeviceParameters(t *testing.T) {
	dev := newDevice(context.Background(), "/dev/null", DefaultOptions())

	p, err := dev.Parameters()
	if err != nil {
		t.Fatal(err)
	}
	p.PreviewSize = camera.Size{Width: 1080, Height: 1920}
	p.PictureSize = p.PreviewSize
	p.PreviewFPS = camera.FPSRange{Min: 4, Max: 10}
	p.JPEGQuality = 85
	if err = dev.SetParameters(p); err != nil {
		t.Fatal(err)
	}
	got, _ := dev.Parameters()
	if got != p {
		t.Fatalf("parameters = %+v, want %+v", got, p)
	}

	p.JPEGQuality = 0
	if err = dev.SetParameters(p); err == nil {
		t.Fatal("expected error for quality 0")
	}
	if err = dev.SetDisplayOrientation(45); err == nil {
		t.Fatal("expected error for 45 degrees")
	}
}

func TestReleasedDevice(t *testing.T) {
	dev := newDevice(context.Background(), "/dev/null", DefaultOptions())
	if err := dev.Release(); err != nil {
		t.Fatal(err)
	}
	if err := dev.StartPreview(); !errors.Is(err, ErrReleased) {
		t.Fatalf("err = %v, want ErrReleased", err)
	}
	if err := dev.AutoFocus(func(camera.Event) {}); !errors.Is(err, ErrReleased) {
		t.Fatalf("err = %v, want ErrReleased", err)
	}
}

func TestIsBusyErr(t *testing.T) {
	if !isBusyErr(errors.New("device or resource busy")) {
		t.Error("busy error not detected")
	}
	if isBusyErr(nil) || isBusyErr(errors.New("no such device")) {
		t.Error("unexpected busy detection")
	}
}
