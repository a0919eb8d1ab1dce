// Package config loads the service configuration from a YAML file, an optional .env
// file and NETCAMERA_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "NETCAMERA_"

const (
	DriverV4L2 = "v4l2"
	DriverFake = "fake"
)

// CameraConfig selects and configures the camera driver.
type CameraConfig struct {
	Driver           string `yaml:"driver"`   // "v4l2" or "fake"
	Device           string `yaml:"device"`   // device node pattern, e.g. /dev/video%d
	ID               int    `yaml:"id"`       // camera to open
	Rotation         int    `yaml:"rotation"` // display orientation in degrees
	MinFPS           int    `yaml:"min_fps"`
	MaxFPS           int    `yaml:"max_fps"`
	JPEGQuality      int    `yaml:"jpeg_quality"` // quality requested from the driver
	SaveQuality      int    `yaml:"save_quality"` // quality of the written file
	FocusTimeoutMs   int    `yaml:"focus_timeout_ms"`
	PictureTimeoutMs int    `yaml:"picture_timeout_ms"`
}

// ScreenConfig is the size of the display surface in pixels.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type StorageConfig struct {
	Root         string `yaml:"root"`
	RequireMount bool   `yaml:"require_mount"` // root must be a mount point (SD card)
}

type ButtonConfig struct {
	Enable     bool `yaml:"enable"`
	Pin        int  `yaml:"pin"` // BCM numbering
	DebounceMs int  `yaml:"debounce_ms"`
}

type NTPConfig struct {
	Server string `yaml:"server"` // empty disables the NTP clock
}

type ScheduleConfig struct {
	IntervalSec int `yaml:"interval_sec"` // 0 disables interval capture at startup
}

// Config aggregates all application configuration.
type Config struct {
	Port       int            `yaml:"port"`
	WebdavPort int            `yaml:"webdav_port"`
	Statics    string         `yaml:"statics"`
	LogLevel   string         `yaml:"log_level"`
	Camera     CameraConfig   `yaml:"camera"`
	Screen     ScreenConfig   `yaml:"screen"`
	Storage    StorageConfig  `yaml:"storage"`
	Button     ButtonConfig   `yaml:"button"`
	NTP        NTPConfig      `yaml:"ntp"`
	Schedule   ScheduleConfig `yaml:"schedule"`
}

func Default() *Config {
	return &Config{
		Port:       9999,
		WebdavPort: 9998,
		Statics:    "./statics",
		LogLevel:   "info",
		Camera: CameraConfig{
			Driver:           DriverV4L2,
			Device:           "/dev/video%d",
			ID:               0,
			Rotation:         90,
			MinFPS:           4,
			MaxFPS:           10,
			JPEGQuality:      85,
			SaveQuality:      100,
			FocusTimeoutMs:   3000,
			PictureTimeoutMs: 10000,
		},
		Screen: ScreenConfig{
			Width:  1080,
			Height: 1920,
		},
		Storage: StorageConfig{
			Root: "/mnt/sdcard",
		},
		Button: ButtonConfig{
			Pin:        17,
			DebounceMs: 50,
		},
	}
}

// Load reads path over the defaults. An empty path skips the file. A .env file in the
// working directory is loaded if present, without overriding variables already set.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.WebdavPort = getEnvAsInt("WEBDAV_PORT", c.WebdavPort)
	c.Statics = getEnv("STATICS", c.Statics)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Camera.Driver = getEnv("CAMERA_DRIVER", c.Camera.Driver)
	c.Camera.Device = getEnv("CAMERA_DEVICE", c.Camera.Device)
	c.Camera.ID = getEnvAsInt("CAMERA_ID", c.Camera.ID)
	c.Camera.Rotation = getEnvAsInt("CAMERA_ROTATION", c.Camera.Rotation)
	c.Screen.Width = getEnvAsInt("SCREEN_WIDTH", c.Screen.Width)
	c.Screen.Height = getEnvAsInt("SCREEN_HEIGHT", c.Screen.Height)
	c.Storage.Root = getEnv("STORAGE_ROOT", c.Storage.Root)
	c.Storage.RequireMount = getEnvAsBool("STORAGE_REQUIRE_MOUNT", c.Storage.RequireMount)
	c.Button.Enable = getEnvAsBool("BUTTON_ENABLE", c.Button.Enable)
	c.Button.Pin = getEnvAsInt("BUTTON_PIN", c.Button.Pin)
	c.NTP.Server = getEnv("NTP_SERVER", c.NTP.Server)
	c.Schedule.IntervalSec = getEnvAsInt("SCHEDULE_INTERVAL_SEC", c.Schedule.IntervalSec)
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.WebdavPort <= 0 || c.WebdavPort > 65535 {
		return fmt.Errorf("webdav_port %d out of range", c.WebdavPort)
	}
	switch c.Camera.Driver {
	case DriverV4L2, DriverFake:
	default:
		return fmt.Errorf("camera.driver must be %q or %q, got %q", DriverV4L2, DriverFake, c.Camera.Driver)
	}
	if c.Camera.ID < 0 {
		return fmt.Errorf("camera.id must be >= 0, got %d", c.Camera.ID)
	}
	if c.Camera.Rotation%90 != 0 {
		return fmt.Errorf("camera.rotation must be a multiple of 90, got %d", c.Camera.Rotation)
	}
	if c.Camera.MinFPS <= 0 || c.Camera.MinFPS > c.Camera.MaxFPS {
		return fmt.Errorf("camera fps range [%d,%d] is invalid", c.Camera.MinFPS, c.Camera.MaxFPS)
	}
	if !validQuality(c.Camera.JPEGQuality) {
		return fmt.Errorf("camera.jpeg_quality must be between 1 and 100, got %d", c.Camera.JPEGQuality)
	}
	if !validQuality(c.Camera.SaveQuality) {
		return fmt.Errorf("camera.save_quality must be between 1 and 100, got %d", c.Camera.SaveQuality)
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("screen size %dx%d must be > 0", c.Screen.Width, c.Screen.Height)
	}
	if c.Storage.Root == "" {
		return errors.New("storage.root is required")
	}
	if c.Schedule.IntervalSec < 0 {
		return fmt.Errorf("schedule.interval_sec must be >= 0, got %d", c.Schedule.IntervalSec)
	}

	return nil
}

func (c *Config) FocusTimeout() time.Duration {
	return time.Duration(c.Camera.FocusTimeoutMs) * time.Millisecond
}

func (c *Config) PictureTimeout() time.Duration {
	return time.Duration(c.Camera.PictureTimeoutMs) * time.Millisecond
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Button.DebounceMs) * time.Millisecond
}

func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Schedule.IntervalSec) * time.Second
}

func validQuality(q int) bool {
	return q >= 1 && q <= 100
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
