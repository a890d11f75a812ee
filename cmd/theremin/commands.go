package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/theremin/internal/logging"
	"github.com/ayusman/theremin/internal/midiout"
	"github.com/ayusman/theremin/internal/music"
	"github.com/ayusman/theremin/internal/recording"
	"github.com/ayusman/theremin/internal/server"
	"github.com/ayusman/theremin/internal/store"
)

func runPorts(cmd *cobra.Command, args []string) error {
	names, err := midiout.ListOutputs()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No MIDI outputs; play will create %q\n", cfg.VirtualPortName)
		return nil
	}
	for i, name := range names {
		fmt.Printf("%2d  %s\n", i, name)
	}
	return nil
}

func runScales(cmd *cobra.Command, args []string) error {
	saved := ""
	if db, err := store.New(cfg.DBPath); err == nil {
		saved, _ = db.Settings().GetOr(store.SettingScale, "")
		db.Close()
	}

	for _, s := range music.Catalog() {
		marker := " "
		if strings.EqualFold(s.Name, saved) {
			marker = "*"
		}
		fmt.Printf("%s %-15s %v\n", marker, s.Name, s.Degrees)
	}
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	db, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sessions, err := db.Sessions().List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded yet")
		return nil
	}

	for _, s := range sessions {
		fmt.Printf("%s  %s  %8s  %5d events  ch %-2d  %-15s %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.Duration().Round(time.Second),
			s.Events,
			s.Channel,
			s.Scale,
			s.PortName,
		)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	id := args[0]
	output := outputFile
	if output == "" {
		output = id + ".mid"
	}

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sess, err := db.Sessions().GetByID(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	events, err := db.Sessions().Events(id)
	if err != nil {
		return err
	}

	opts := recording.DefaultOptions()
	opts.BPM = exportBPM
	opts.TrackName = sess.Scale

	fmt.Printf("Exporting %d events -> %s\n", len(events), output)
	if err := recording.WriteFile(output, events, opts); err != nil {
		return err
	}
	fmt.Println("Export complete!")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     db,
		Logger:    logger,
	})
	return srv.ListenAndServe(ctx, cfg.ServerAddr)
}
