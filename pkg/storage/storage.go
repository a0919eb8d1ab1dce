package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"netcamera/pkg/clock"
	"netcamera/pkg/utils"
	"netcamera/pkg/utils/image"
	"netcamera/pkg/utils/ps"
)

var ErrNotMounted = errors.New("external storage is not mounted")

// Storage writes captured pictures to a volume, one timestamp-named JPEG per picture.
type Storage struct {
	volume  Volume
	clock   clock.Clock
	quality int
	logger  *zap.SugaredLogger
}

type Option func(*Storage)

func WithClock(c clock.Clock) Option {
	return func(s *Storage) {
		s.clock = c
	}
}

func WithQuality(quality int) Option {
	return func(s *Storage) {
		s.quality = quality
	}
}

func New(volume Volume, opts ...Option) (*Storage, error) {
	if volume == nil || volume.Root() == "" {
		return nil, fmt.Errorf("storage root can not be empty")
	}
	s := &Storage{
		volume:  volume,
		clock:   clock.System{},
		quality: DefaultQuality,
		logger:  utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.quality < 1 || s.quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d out of range [1,100]", s.quality)
	}

	return s, nil
}

func (s *Storage) Root() string {
	return s.volume.Root()
}

// FileName returns the path the next capture would be written to.
func (s *Storage) FileName() (string, error) {
	return s.FileNameExt(DefaultImageExt)
}

// FileNameExt is FileName with another extension, e.g. ".avi" for recordings.
func (s *Storage) FileNameExt(ext string) (string, error) {
	state, err := s.volume.State()
	if err != nil {
		return "", fmt.Errorf("check storage state: %w", err)
	}
	if state != MediaMounted {
		s.logger.Warnf("storage %s is %s", s.volume.Root(), state)
		return "", ErrNotMounted
	}

	return filepath.Join(s.volume.Root(), s.clock.Now().Format(TimeLayout)+ext), nil
}

// Persist decodes data, re-encodes it as JPEG and writes it to a new file.
// Nothing is written when the volume is not mounted.
func (s *Storage) Persist(data []byte) (name string, err error) {
	img, err := image.Decode(data)
	if err != nil {
		return "", fmt.Errorf("decode picture: %w", err)
	}
	name, err = s.FileName()
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, DefaultFilePerm)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", name, cerr)
		}
	}()

	if err = image.EncodeJPEG(img, f, s.quality); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if info, serr := f.Stat(); serr == nil {
		s.logger.Infof("wrote %s (%s)", name, humanize.Bytes(uint64(info.Size())))
	}

	return name, nil
}

func (s *Storage) Usage() (ps.Disk, error) {
	return ps.DiskUsage(s.volume.Root())
}

// LogUsage reports the free space of the volume, or why it is unusable.
func (s *Storage) LogUsage() {
	state, err := s.volume.State()
	if err != nil {
		s.logger.Warnf("storage %s: %s", s.volume.Root(), err)
		return
	}
	if state != MediaMounted {
		s.logger.Warnf("storage %s is %s", s.volume.Root(), state)
		return
	}
	usage, err := s.Usage()
	if err != nil {
		s.logger.Warnf("storage usage: %s", err)
		return
	}
	s.logger.Infof("storage %s: %s", s.volume.Root(), usage.Human)
}
