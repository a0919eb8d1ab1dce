package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// Volume is the external storage that receives captures.
type Volume interface {
	Root() string
	State() (string, error)
}

// MountVolume is mounted only while its root is the mount point of a partition,
// as with an SD card under /media.
type MountVolume struct {
	root string
}

func NewMountVolume(root string) *MountVolume {
	return &MountVolume{root: filepath.Clean(root)}
}

func (v *MountVolume) Root() string {
	return v.root
}

func (v *MountVolume) State() (string, error) {
	partitions, err := disk.Partitions(true)
	if err != nil {
		return "", err
	}
	for _, p := range partitions {
		if filepath.Clean(p.Mountpoint) == v.root {
			return MediaMounted, nil
		}
	}

	return dirState(v.root, MediaUnmounted)
}

// DirVolume is mounted while its root is an existing directory.
type DirVolume struct {
	root string
}

func NewDirVolume(root string) *DirVolume {
	return &DirVolume{root: filepath.Clean(root)}
}

func (v *DirVolume) Root() string {
	return v.root
}

func (v *DirVolume) State() (string, error) {
	return dirState(v.root, MediaMounted)
}

func dirState(root, present string) (string, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return MediaRemoved, nil
	}
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return MediaRemoved, nil
	}

	return present, nil
}
