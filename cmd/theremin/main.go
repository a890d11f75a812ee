// Package main is the entry point for the theremin CLI
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/theremin/internal/config"
	"github.com/ayusman/theremin/internal/detector"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg    = config.Default()
	detCfg = detector.DefaultConfig()

	realtime        bool
	landmarkLogPath string
	staticDir       string
	outputFile      string
	exportBPM       float64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "theremin",
	Short: "Play MIDI with your hands in front of a webcam",
	Long: `theremin tracks both hands through a webcam and plays a MIDI instrument.

The right hand picks the note: its height selects the base note, the curled
fingers select the scale degree and a curled thumb holds the note. The left
hand sets the volume with its height and bends the pitch by moving the thumb
sideways while making an OK sign.

Examples:
  theremin play
  theremin play --port "IAC" --channel 2 --scale pentatonic
  theremin play --replay take1.jsonl --no-window
  theremin ports
  theremin sessions
  theremin export <session-id> -o take1.mid`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Track hands and play until quit",
	Args:  cobra.NoArgs,
	RunE:  runPlay,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI output ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var scalesCmd = &cobra.Command{
	Use:   "scales",
	Short: "List the selectable scales",
	Args:  cobra.NoArgs,
	RunE:  runScales,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Write a recorded session as a Standard MIDI File",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session API without playing",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Session database path")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "Development logging")

	// play: capture
	f := playCmd.Flags()
	f.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "Camera device index")
	f.IntVar(&cfg.FrameWidth, "width", cfg.FrameWidth, "Processing frame width")
	f.IntVar(&cfg.FrameHeight, "height", cfg.FrameHeight, "Processing frame height")
	f.BoolVar(&cfg.Mirror, "mirror", cfg.Mirror, "Mirror the camera image")
	f.StringVar(&cfg.ReplayPath, "replay", "", "Play a recorded landmark file instead of the camera")
	f.BoolVar(&realtime, "realtime", true, "Pace --replay at its recorded speed")
	f.StringVar(&landmarkLogPath, "record-landmarks", "", "Write every frame's landmarks to this file")

	// play: detection
	f.IntVar(&detCfg.MaxHands, "max-hands", detCfg.MaxHands, "Maximum hands to detect")
	f.IntVar(&detCfg.ModelComplexity, "model-complexity", detCfg.ModelComplexity, "Landmark model (0 lite, 1 full)")
	f.Float64Var(&detCfg.MinConfidence, "min-detection-confidence", detCfg.MinConfidence, "Minimum detection confidence")
	f.Float64Var(&detCfg.MinTrackingConf, "min-tracking-confidence", detCfg.MinTrackingConf, "Minimum tracking confidence")
	f.StringVar(&detCfg.Script, "landmarker", "", "Path to hand_landmarker.py")
	f.StringVar(&detCfg.Python, "python", "", "Python interpreter for the landmark service")

	// play: MIDI
	f.IntVarP(&cfg.Channel, "channel", "c", cfg.Channel, "MIDI channel (1-16)")
	f.StringVarP(&cfg.PortName, "port", "p", cfg.PortName, "Output port name to match; empty picks the first")
	f.StringVar(&cfg.VirtualPortName, "virtual-port", cfg.VirtualPortName, "Virtual port created when no output matches")
	f.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail on out-of-range MIDI values instead of clamping")

	// play: mapping
	f.StringVarP(&cfg.ScaleName, "scale", "s", cfg.ScaleName, "Scale to start on; empty restores the last one")
	f.Float64Var(&cfg.Calibration.VolumeMin, "volume-min", cfg.Calibration.VolumeMin, "Wrist height of full volume")
	f.Float64Var(&cfg.Calibration.VolumeMaxMargin, "volume-margin", cfg.Calibration.VolumeMaxMargin, "Bottom margin below which the volume is silent")
	f.Float64Var(&cfg.PitchBendScale, "bend-scale", cfg.PitchBendScale, "Pitch bend per unit of thumb speed")
	f.Float64Var(&cfg.OKPinchDistance, "ok-pinch", cfg.OKPinchDistance, "Thumb to index distance of the OK sign, metres")
	f.Float64Var(&cfg.ThumbBentX, "thumb-bent", cfg.ThumbBentX, "Thumb tip offset below which the thumb counts as curled, metres")

	// play: surfaces
	f.BoolVar(&cfg.ShowWindow, "window", cfg.ShowWindow, "Show the preview window")
	f.BoolVar(&cfg.Tray, "tray", cfg.Tray, "Show the system tray menu")
	f.StringVar(&cfg.ServerAddr, "http", cfg.ServerAddr, "Serve the control API on this address, e.g. :8080")
	f.StringVar(&staticDir, "static", "", "Serve static files from this directory with --http")

	// export
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path (default <session-id>.mid)")
	exportCmd.Flags().Float64Var(&exportBPM, "bpm", 120, "Tempo of the written file")

	// serve
	serveCmd.Flags().StringVar(&cfg.ServerAddr, "http", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&staticDir, "static", "", "Serve static files from this directory")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(scalesCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}
