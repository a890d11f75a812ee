package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/theremin/internal/app"
	"github.com/ayusman/theremin/internal/capture"
	"github.com/ayusman/theremin/internal/detector"
	"github.com/ayusman/theremin/internal/logging"
	"github.com/ayusman/theremin/internal/midiout"
	"github.com/ayusman/theremin/internal/overlay"
	"github.com/ayusman/theremin/internal/server"
	"github.com/ayusman/theremin/internal/store"
	"github.com/ayusman/theremin/internal/tray"
)

// Preview window size; frames are processed at the configured size and
// upscaled for display.
const (
	windowWidth  = 1280
	windowHeight = 720
)

func runPlay(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	source, err := openSource()
	if err != nil {
		return err
	}

	// Until the app takes ownership, every error path releases what was
	// opened so far.
	var pending closers
	pending.add(source)

	port, err := midiout.OpenPort(midiout.PortConfig{
		Name:        cfg.PortName,
		VirtualName: cfg.VirtualPortName,
		Channel:     cfg.Channel,
		Logger:      logger,
	})
	if err != nil {
		return errors.Join(err, pending.close())
	}
	pending.add(port)

	appCfg := app.Config{
		Settings: cfg,
		Source:   source,
		Sink:     port,
		Port:     port.Name(),
		Store:    db,
		Logger:   logger,
	}
	if cfg.ShowWindow {
		window := overlay.NewWindow("Theremin", windowWidth, windowHeight)
		appCfg.Display = window
		pending.add(window)
	}
	if landmarkLogPath != "" {
		f, err := os.Create(landmarkLogPath)
		if err != nil {
			return errors.Join(fmt.Errorf("create landmark log: %w", err), pending.close())
		}
		defer f.Close()
		appCfg.LandmarkLog = detector.NewReplayWriter(f)
	}

	a, err := app.New(appCfg)
	if err != nil {
		return errors.Join(err, pending.close())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverDone := make(chan struct{})
	if cfg.ServerAddr != "" {
		hub := server.NewLiveHub(logger)
		preview := server.NewPreview()
		a.OnStatus(hub.Publish)
		a.OnFrame(preview.Update)

		srv := server.New(server.Config{
			StaticDir:  staticDir,
			Instrument: a,
			Store:      db,
			Live:       hub,
			Preview:    preview,
			Logger:     logger,
		})
		go func() {
			defer close(serverDone)
			if err := srv.ListenAndServe(runCtx, cfg.ServerAddr); err != nil {
				logger.Error("http server stopped", zap.Error(err))
			}
		}()
	} else {
		close(serverDone)
	}

	if cfg.Tray {
		err = runWithTray(runCtx, a)
	} else {
		err = a.Run(runCtx)
	}
	cancel()
	<-serverDone

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openSource opens the replay file when one is given, otherwise the camera
// and the landmark service.
func openSource() (app.Source, error) {
	if cfg.ReplayPath != "" {
		return app.OpenReplay(cfg.ReplayPath, realtime)
	}

	det, err := detector.NewMediaPipeDetector(detCfg)
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}

	camera := capture.NewCamera(capture.Config{
		DeviceID: cfg.CameraID,
		Width:    cfg.FrameWidth,
		Height:   cfg.FrameHeight,
	})
	src, err := app.NewCameraSource(camera, det, cfg.FrameWidth, cfg.FrameHeight, cfg.Mirror)
	if err != nil {
		det.Close()
		return nil, err
	}
	return src, nil
}

// runWithTray runs the tray on the calling goroutine, which the menu toolkit
// requires, and the instrument beside it. Whichever stops first stops the other.
func runWithTray(ctx context.Context, a *app.App) error {
	t := tray.New()
	t.OnToggleLandmarks(func(bool) { a.ToggleLandmarks() })
	t.OnNextScale(a.NextScale)
	t.OnQuit(a.Quit)

	var lastScale, lastNote string
	lastLandmarks := true
	a.OnStatus(func(st app.Status) {
		if st.Scale != lastScale {
			lastScale = st.Scale
			t.SetScale(st.Scale)
		}
		note := ""
		if st.Last != nil && st.Last.Sounding {
			note = st.Last.NoteName
		}
		if note != lastNote {
			lastNote = note
			t.SetNote(note)
		}
		if st.Landmarks != lastLandmarks {
			lastLandmarks = st.Landmarks
			t.SetLandmarks(st.Landmarks)
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
		t.Quit()
	}()

	t.Run()
	a.Quit()
	return <-done
}

type closers []io.Closer

func (c *closers) add(cl io.Closer) {
	*c = append(*c, cl)
}

// close releases everything in reverse order of acquisition.
func (c *closers) close() error {
	var errs []error
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	*c = nil
	return errors.Join(errs...)
}
