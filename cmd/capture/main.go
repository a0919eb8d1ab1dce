package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"netcamera/pkg/camera"
	"netcamera/pkg/camera/fake"
	"netcamera/pkg/camera/v4l"
	"netcamera/pkg/notify"
	"netcamera/pkg/preview"
	"netcamera/pkg/storage"
	"netcamera/pkg/utils"
)

// One-shot capture:
// 1) open the camera and start the preview
// 2) read a few preview frames
// 3) take n pictures one second apart, printing each path
// 4) release the camera
func main() {
	dev := flag.String("dev", v4l.DefaultDevicePattern, "device node pattern")
	useFake := flag.Bool("fake", false, "use the synthetic camera")
	dir := flag.String("dir", ".", "picture directory")
	w := flag.Int("w", 1080, "screen width")
	h := flag.Int("h", 1920, "screen height")
	n := flag.Int("n", 1, "number of pictures")
	frames := flag.Int("frames", 5, "preview frames to read before capturing")
	timeout := flag.Duration("timeout", 5*time.Second, "frame read timeout")
	flag.Parse()

	logger := utils.GetLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var driver camera.Driver
	if *useFake {
		driver = fake.New()
	} else {
		opts := v4l.DefaultOptions()
		opts.DevicePattern = *dev
		driver = v4l.New(ctx, opts)
	}
	stg, err := storage.New(storage.NewDirVolume(*dir))
	if err != nil {
		fmt.Println("storage:", err)
		os.Exit(1)
	}
	recorder := notify.NewRecorder(*n)
	ctrl := camera.NewController(ctx, driver, stg, notify.Multi{notify.LogNotifier{Logger: logger}, recorder},
		camera.DefaultOptions(camera.Size{Width: *w, Height: *h}))

	surface := preview.NewBroadcaster()
	previewCh, unsubscribe := surface.Subscribe()
	fmt.Printf("[1/3] start preview %dx%d\n", *w, *h)
	if err = ctrl.SurfaceReady(ctx, surface); err != nil {
		fmt.Println("SurfaceReady failed:", err)
		os.Exit(1)
	}
	code := run(ctx, ctrl, previewCh, *frames, *n, *timeout)
	unsubscribe()

	fmt.Println("[3/3] release camera")
	if err = ctrl.SurfaceDestroyed(ctx); err != nil {
		fmt.Println("SurfaceDestroyed failed:", err)
		code = 1
	}
	for _, notice := range recorder.Notices() {
		fmt.Printf("notice(%s): %s\n", notice.Duration, notice.Text)
	}
	os.Exit(code)
}

func run(ctx context.Context, ctrl *camera.Controller, previewCh <-chan []byte, frames, n int, timeout time.Duration) int {
	if err := readFrames(previewCh, frames, timeout); err != nil {
		fmt.Println(err)
		return 1
	}

	fmt.Printf("[2/3] take %d picture(s)\n", n)
	for i := 0; i < n; i++ {
		if i > 0 {
			// file names have second precision
			time.Sleep(time.Second)
		}
		start := time.Now()
		path, err := ctrl.Capture(ctx)
		if err != nil {
			fmt.Printf("capture %d failed: %s\n", i+1, err)
			return 1
		}
		fmt.Printf("capture %d: %s (%s)\n", i+1, path, time.Since(start))
	}

	return 0
}

func readFrames(ch <-chan []byte, n int, timeout time.Duration) error {
	for got := 0; got < n; got++ {
		select {
		case frame, ok := <-ch:
			if !ok {
				return fmt.Errorf("preview closed")
			}
			fmt.Printf("preview frame %d, %d bytes\n", got+1, len(frame))
		case <-time.After(timeout):
			return fmt.Errorf("preview frame timeout after %s", timeout)
		}
	}
	return nil
}
