package ps

import (
	"testing"
)

func TestPS(t *testing.T) {
	m, err := MemoryStatus()
	if err != nil {
		t.Fatal(err)
	}
	if m.Total == 0 {
		t.Error("total memory is zero")
	}

	if _, err = CPUStatus(); err != nil {
		t.Fatal(err)
	}

	d, err := DiskUsage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if d.Total == 0 || d.Human == "" {
		t.Errorf("unexpected disk usage %+v", d)
	}
}
