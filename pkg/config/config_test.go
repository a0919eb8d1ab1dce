package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err = os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Camera.Rotation != 90 || cfg.Camera.MinFPS != 4 || cfg.Camera.MaxFPS != 10 {
		t.Errorf("camera defaults = %+v", cfg.Camera)
	}
	if cfg.Camera.JPEGQuality != 85 || cfg.Camera.SaveQuality != 100 {
		t.Errorf("quality defaults = %d/%d", cfg.Camera.JPEGQuality, cfg.Camera.SaveQuality)
	}
}

func TestLoadFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
port: 8080
log_level: debug
camera:
  driver: fake
  max_fps: 15
screen:
  width: 640
  height: 480
storage:
  root: /tmp/pictures
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.LogLevel != "debug" {
		t.Errorf("port/log_level = %d/%s", cfg.Port, cfg.LogLevel)
	}
	if cfg.Camera.Driver != DriverFake || cfg.Camera.MaxFPS != 15 {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	// keys missing from the file keep their defaults
	if cfg.Camera.MinFPS != 4 || cfg.Camera.Rotation != 90 {
		t.Errorf("camera defaults lost: %+v", cfg.Camera)
	}
	if cfg.Screen.Width != 640 || cfg.Screen.Height != 480 {
		t.Errorf("screen = %+v", cfg.Screen)
	}
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NETCAMERA_PORT", "7000")
	t.Setenv("NETCAMERA_STORAGE_ROOT", "/data")
	t.Setenv("NETCAMERA_BUTTON_ENABLE", "true")
	t.Setenv("NETCAMERA_CAMERA_DRIVER", "fake")

	cfg, err := Load(writeConfig(t, "port: 8080\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.Port)
	}
	if cfg.Storage.Root != "/data" || !cfg.Button.Enable || cfg.Camera.Driver != DriverFake {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NETCAMERA_SCREEN_WIDTH=720\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("NETCAMERA_SCREEN_WIDTH") })

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Screen.Width != 720 {
		t.Errorf("screen width = %d, want 720", cfg.Screen.Width)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"rotation", func(c *Config) { c.Camera.Rotation = 45 }, "rotation"},
		{"fps", func(c *Config) { c.Camera.MinFPS = 20 }, "fps"},
		{"zero fps", func(c *Config) { c.Camera.MinFPS = 0 }, "fps"},
		{"quality", func(c *Config) { c.Camera.JPEGQuality = 0 }, "jpeg_quality"},
		{"save quality", func(c *Config) { c.Camera.SaveQuality = 101 }, "save_quality"},
		{"screen", func(c *Config) { c.Screen.Height = 0 }, "screen"},
		{"driver", func(c *Config) { c.Camera.Driver = "usb" }, "camera.driver"},
		{"root", func(c *Config) { c.Storage.Root = "" }, "storage.root"},
		{"port", func(c *Config) { c.Port = 70000 }, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %s", err)
	}
}

func TestInvalidYAML(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load(writeConfig(t, "port: [1,2\n")); err == nil {
		t.Error("expected yaml error")
	}
}
