package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/renderer/internal/clock"
	"github.com/vkngwrapper/renderer/internal/logger"
	"github.com/vkngwrapper/renderer/internal/memory"
	"github.com/vkngwrapper/renderer/internal/platform"
	"github.com/vkngwrapper/renderer/internal/renderer/vulkan"
)

type options struct {
	title       string
	width       int
	height      int
	diagnostics bool
	logLevel    string
	frames      int
}

func parseOptions() options {
	var o options
	flag.StringVar(&o.title, "title", "Testbed", "window title")
	flag.IntVar(&o.width, "width", 1280, "initial window width")
	flag.IntVar(&o.height, "height", 720, "initial window height")
	flag.BoolVar(&o.diagnostics, "diagnostics", vulkan.DiagnosticsDefault, "enable validation layers and the debug messenger")
	flag.StringVar(&o.logLevel, "log-level", "info", "trace, debug, info, warn, error or fatal")
	flag.IntVar(&o.frames, "frames", 0, "exit after this many frames; 0 runs until the window closes")
	flag.Parse()
	return o
}

// echoLevels writes one line per level so the active filter is visible.
func echoLevels(lg *logger.Logger) {
	lg.Fatalf("A test message: %f", 3.14)
	lg.Errorf("A test message: %f", 3.14)
	lg.Warnf("A test message: %f", 3.14)
	lg.Infof("A test message: %f", 3.14)
	lg.Debugf("A test message: %f", 3.14)
	lg.Tracef("A test message: %f", 3.14)
}

func run(o options) error {
	level, err := logger.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	lg := logger.New(os.Stderr, level)
	echoLevels(lg)

	mem := memory.NewTracker(lg)
	defer func() {
		fmt.Fprint(os.Stderr, mem.Report())
	}()

	window, err := platform.NewWindow(o.title, int32(o.width), int32(o.height), lg)
	if err != nil {
		return err
	}
	defer window.Destroy()

	global, err := window.LoadDriver()
	if err != nil {
		return err
	}

	cfg := vulkan.DefaultConfig(o.title)
	cfg.Diagnostics = o.diagnostics

	renderer, err := vulkan.Initialize(cfg, window, global, lg, mem)
	if err != nil {
		return errors.Wrap(err, "initialize renderer")
	}
	defer renderer.Shutdown()

	window.OnResize = renderer.Resized

	clk := clock.New()
	clk.Start()
	last := clk.Elapsed()

	for frame := 0; o.frames == 0 || frame < o.frames; {
		if !window.PumpMessages() {
			break
		}
		if window.Minimized() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		clk.Update()
		delta := (clk.Elapsed() - last).Seconds()
		last = clk.Elapsed()

		ok, err := renderer.BeginFrame(delta)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := renderer.EndFrame(delta); err != nil {
			return err
		}
		frame++
	}

	lg.Infof("Ran for %s.", clk.Elapsed())
	return renderer.WaitIdle()
}

func main() {
	runtime.LockOSThread()

	if err := run(parseOptions()); err != nil {
		log.Fatalf("%+v\n", err)
	}
}
