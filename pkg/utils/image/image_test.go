package image

import (
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	data, err := EncodeJPEGBytes(Gradient(64, 48, 3), 85)
	if err != nil {
		t.Fatal(err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("bounds = %v, want 64x48", b)
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error for empty data")
	}
	if _, err := Decode([]byte("not a jpeg")); err == nil {
		t.Fatal("expected error for garbage")
	}
}
