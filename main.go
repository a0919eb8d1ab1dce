package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"netcamera/pkg/button"
	"netcamera/pkg/camera"
	"netcamera/pkg/camera/fake"
	"netcamera/pkg/camera/v4l"
	"netcamera/pkg/clock"
	"netcamera/pkg/config"
	"netcamera/pkg/notify"
	"netcamera/pkg/ov"
	"netcamera/pkg/preview"
	"netcamera/pkg/schedule"
	"netcamera/pkg/storage"
	"netcamera/pkg/utils"
	"netcamera/pkg/utils/ps"
	"netcamera/pkg/video"
	"netcamera/pkg/webdav"
)

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"

	surfaceReady   = "ready"
	surfaceDestroy = "destroy"

	recordStart = "start"
	recordStop  = "stop"

	minInterval   = time.Second
	recentNotices = 50
)

var (
	configPath = flag.String("config", "", "yaml config file")
	webdavPort = flag.Int("webdav-port", 0, "webdav port, overrides the config")
	port       = flag.Int("port", 0, "ui port, overrides the config")
	storageDir = flag.String("dir", "", "picture directory, overrides the config")
	staticsDir = flag.String("statics", "", "statics directory, overrides the config")
	driverName = flag.String("driver", "", "camera driver (v4l2|fake), overrides the config")

	logger *zap.SugaredLogger

	controller *camera.Controller
	surface    *preview.Broadcaster
	stg        *storage.Storage
	recorder   *notify.Recorder
	hub        *notify.Hub
	scheduler  *schedule.Scheduler
	davServer  *webdav.Webdav
	recording  *video.Recorder
)

func init() {
	logger = utils.GetLogger()
}

func main() {
	flag.Parse()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal(err)
	}
	if err = utils.SetLevel(cfg.LogLevel); err != nil {
		logger.Warnf("invalid log level %q: %s", cfg.LogLevel, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// init storage
	var clk clock.Clock = clock.System{}
	if cfg.NTP.Server != "" {
		offset, err := clock.SyncNTP(cfg.NTP.Server)
		if err != nil {
			logger.Warnf("ntp sync failed, using the system clock: %s", err)
		} else {
			logger.Infof("clock offset from %s: %s", cfg.NTP.Server, time.Duration(offset))
			clk = offset
		}
	}
	var volume storage.Volume = storage.NewDirVolume(cfg.Storage.Root)
	if cfg.Storage.RequireMount {
		volume = storage.NewMountVolume(cfg.Storage.Root)
	}
	stg, err = storage.New(volume, storage.WithClock(clk), storage.WithQuality(cfg.Camera.SaveQuality))
	if err != nil {
		logger.Fatal(err)
	}
	stg.LogUsage()

	// init camera
	recorder = notify.NewRecorder(recentNotices)
	hub = notify.NewHub()
	notifier := notify.Multi{notify.LogNotifier{Logger: logger}, recorder, hub}

	driver, err := newDriver(ctx, cfg)
	if err != nil {
		logger.Fatal(err)
	}
	opts := camera.DefaultOptions(camera.Size{Width: cfg.Screen.Width, Height: cfg.Screen.Height})
	opts.CameraID = cfg.Camera.ID
	opts.Rotation = cfg.Camera.Rotation
	opts.FPS = camera.FPSRange{Min: cfg.Camera.MinFPS, Max: cfg.Camera.MaxFPS}
	opts.JPEGQuality = cfg.Camera.JPEGQuality

	controller = camera.NewController(ctx, driver, stg, notifier, opts)
	surface = preview.NewBroadcaster()
	if err = controller.SurfaceReady(ctx, surface); err != nil {
		logger.Errorf("start preview: %s", err)
	}
	defer func() {
		if err := controller.SurfaceDestroyed(context.Background()); err != nil {
			logger.Errorf("release camera: %s", err)
		}
	}()

	scheduler = schedule.New(ctx, controller)
	if cfg.Schedule.IntervalSec > 0 {
		if err = scheduler.Begin(cfg.ScheduleInterval()); err != nil {
			logger.Errorf("start scheduler: %s", err)
		}
	}
	davServer = webdav.New(ctx, cfg.WebdavPort, stg.Root())
	defer davServer.Stop()
	recording = video.NewRecorder()
	defer func() {
		if _, ok := recording.Current(); ok {
			if _, err := recording.Stop(); err != nil {
				logger.Errorf("stop recording: %s", err)
			}
		}
	}()

	if cfg.Button.Enable {
		pin, err := button.OpenRPi(cfg.Button.Pin)
		if err != nil {
			logger.Errorf("shutter button disabled: %s", err)
		} else {
			go button.Watch(ctx, pin, cfg.Debounce(), func() {
				go func() {
					if _, err := controller.Capture(ctx); err != nil {
						logger.Warnf("button capture: %s", err)
					}
				}()
			})
		}
	}

	// init gin
	r := gin.New()
	//gin.SetMode(gin.ReleaseMode)
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	if err := registerStaticsDir(r, cfg.Statics, "/"); err != nil {
		logger.Warn(err)
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	apiRouter := r.Group("/api")

	deviceRouter := apiRouter.Group("/device")
	deviceRouter.GET("/realtime/video", surface.ServeMJPEG)
	deviceRouter.PUT("/surface", ctlSurface)
	deviceRouter.PUT("/webdav", ctlWebdav)
	deviceRouter.PUT("/record", ctlRecord)

	apiRouter.POST("/capture", capture)
	apiRouter.GET("/status", status)
	apiRouter.GET("/notices", listNotices)
	apiRouter.GET("/notices/ws", gin.WrapH(hub))

	scheduleRouter := apiRouter.Group("/schedule")
	scheduleRouter.PUT("", startSchedule)
	scheduleRouter.DELETE("", stopSchedule)

	utils.ListenAndServe(ctx, r, cfg.Port)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *webdavPort != 0 {
		cfg.WebdavPort = *webdavPort
	}
	if *storageDir != "" {
		cfg.Storage.Root = *storageDir
	}
	if *staticsDir != "" {
		cfg.Statics = *staticsDir
	}
	if *driverName != "" {
		cfg.Camera.Driver = *driverName
	}

	return cfg, cfg.Validate()
}

func newDriver(ctx context.Context, cfg *config.Config) (camera.Driver, error) {
	switch cfg.Camera.Driver {
	case config.DriverFake:
		return fake.New(), nil
	case config.DriverV4L2:
		opts := v4l.DefaultOptions()
		opts.DevicePattern = cfg.Camera.Device
		if cfg.Camera.FocusTimeoutMs > 0 {
			opts.FocusTimeout = cfg.FocusTimeout()
		}
		if cfg.Camera.PictureTimeoutMs > 0 {
			opts.PictureTimeout = cfg.PictureTimeout()
		}
		return v4l.New(ctx, opts), nil
	default:
		return nil, fmt.Errorf("unknown camera driver %q", cfg.Camera.Driver)
	}
}

func ctlSurface(c *gin.Context) {
	var err error
	switch c.Query("op") {
	case surfaceReady:
		err = controller.SurfaceReady(c.Request.Context(), surface)
	case surfaceDestroy:
		err = controller.SurfaceDestroyed(c.Request.Context())
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
		return
	}
	if err != nil {
		captureErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(nil))
}

func capture(c *gin.Context) {
	p, err := controller.Capture(c.Request.Context())
	if err != nil {
		captureErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.Capture{Path: p}))
}

func status(c *gin.Context) {
	cs, err := controller.Status(c.Request.Context())
	if err != nil {
		internalErr(c, err)
		return
	}
	s := ov.Status{
		Camera:    cs,
		Viewers:   surface.Viewers(),
		Listeners: hub.ClientCount(),
		Webdav:    davServer.Running(),
	}
	if rec, ok := recording.Current(); ok {
		s.Recording = &rec
	}
	if interval := scheduler.Interval(); interval > 0 {
		s.Schedule = ov.Schedule{Running: true, Interval: interval.String()}
	}
	if disk, err := stg.Usage(); err != nil {
		logger.Debugf("disk usage of %s: %s", stg.Root(), err)
	} else {
		s.Disk = &disk
	}
	if cpu, err := ps.CPUStatus(); err == nil {
		s.CPU = &cpu
	}
	if memory, err := ps.MemoryStatus(); err == nil {
		s.Memory = &memory
	}

	c.JSON(http.StatusOK, jsend.Success(s))
}

func listNotices(c *gin.Context) {
	c.JSON(http.StatusOK, jsend.Success(recorder.Notices()))
}

func startSchedule(c *gin.Context) {
	var req ov.ScheduleRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	if interval < minInterval {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(fmt.Sprintf("interval %s less than %s", interval, minInterval)))
		return
	}
	if err = scheduler.Begin(interval); err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(ov.Schedule{Running: true, Interval: interval.String()}))
}

func stopSchedule(c *gin.Context) {
	scheduler.Stop()
	c.JSON(http.StatusOK, jsend.Success(ov.Schedule{}))
}

func ctlRecord(c *gin.Context) {
	switch c.Query("op") {
	case recordStart:
		startRecord(c)
	case recordStop:
		rec, err := recording.Stop()
		if err != nil {
			internalErr(c, err)
			return
		}
		c.JSON(http.StatusOK, jsend.Success(rec))
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}

// startRecord records the live preview at the current preview size and frame rate.
func startRecord(c *gin.Context) {
	cs, err := controller.Status(c.Request.Context())
	if err != nil {
		internalErr(c, err)
		return
	}
	if !cs.Previewing || cs.Parameters == nil {
		captureErr(c, camera.ErrCameraNotOpen)
		return
	}
	name, err := stg.FileNameExt(storage.DefaultVideoExt)
	if err != nil {
		captureErr(c, err)
		return
	}
	size := cs.Parameters.PreviewSize
	err = recording.Start(surface, name, size.Width, size.Height, cs.Parameters.PreviewFPS.Max)
	if errors.Is(err, video.ErrRecording) {
		c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
		return
	}
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(video.Recording{Path: name}))
}

func ctlWebdav(c *gin.Context) {
	op := c.Query("op")
	switch op {
	case webDavStart:
		startWebdav(c)
	case webDavShutdown:
		shutdownWebdav(c)
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}

func startWebdav(c *gin.Context) {
	if davServer.Running() {
		c.JSON(http.StatusOK, jsend.Success("the webdav service is already enabled"))
		return
	}
	davServer.Start()
	c.JSON(http.StatusOK, jsend.Success(c.Request.Host))
}

func shutdownWebdav(c *gin.Context) {
	if !davServer.Running() {
		c.JSON(http.StatusOK, jsend.SimpleErr("the webdav service has been shut down"))
		return
	}
	davServer.Stop()

	c.JSON(http.StatusOK, jsend.Success(nil))
}

func registerStaticsDir(group gin.IRoutes, dir, relativeGroup string) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("the specified directory %s does not exist", dir)
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	group.StaticFile(relativeGroup, filepath.Join(dir, "index.html"))
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relativePath := path.Join(relativeGroup, strings.Replace(filepath.ToSlash(p), dir, "", 1))
			group.StaticFile(relativePath, p)
		}
		return nil
	})
}

// captureErr maps controller and storage errors to HTTP statuses.
func captureErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, camera.ErrCameraNotOpen), errors.Is(err, camera.ErrCaptureInProgress):
		c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
	case errors.Is(err, camera.ErrFocusFailed):
		c.JSON(http.StatusUnprocessableEntity, jsend.SimpleErr(err.Error()))
	case errors.Is(err, storage.ErrNotMounted):
		c.JSON(http.StatusInsufficientStorage, jsend.SimpleErr(err.Error()))
	default:
		internalErr(c, err)
	}
}

func internalErr(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
}
