package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/ownaudio/goaudio/pkg/effects"
	"github.com/ownaudio/goaudio/pkg/engine"
	"github.com/ownaudio/goaudio/pkg/filesource"
	"github.com/ownaudio/goaudio/pkg/masterclock"
	"github.com/ownaudio/goaudio/pkg/sink"
	"github.com/ownaudio/goaudio/pkg/types"
)

var (
	playDeviceIdx   int
	playFrames      int
	playSampleRate  int
	playChannels    int
	playLoop        bool
	playRecordPath  string
	playTempo       float64
	playPitch       float64
	playMasterGain  float64
	playLimiterCeil float64
	playVerbose     bool
)

var playCmd = &cobra.Command{
	Use:   "play <audio_file> [more_files...]",
	Short: "Play one or more audio files through the mixer",
	Long: `play opens each file with the extension-matched decoder, attaches it
to the mixer as an independent source and renders the mix to the default (or
selected) PortAudio output device. Status is printed every 2 seconds.

Supported formats: WAV, MP3, FLAC, Ogg Vorbis, Opus.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", -1, "Output device index (-1 = default)")
	playCmd.Flags().IntVarP(&playFrames, "frames", "f", 512, "Frames per buffer")
	playCmd.Flags().IntVar(&playSampleRate, "rate", 48000, "Engine sample rate")
	playCmd.Flags().IntVar(&playChannels, "channels", 2, "Engine channel count")
	playCmd.Flags().BoolVarP(&playLoop, "loop", "l", false, "Loop each source at end of stream")
	playCmd.Flags().StringVar(&playRecordPath, "record", "", "Mirror the mix to a WAV file at this path")
	playCmd.Flags().Float64Var(&playTempo, "tempo", 1.0, "Initial tempo factor applied to every source")
	playCmd.Flags().Float64Var(&playPitch, "pitch", 0.0, "Initial pitch shift (semitones) applied to every source")
	playCmd.Flags().Float64Var(&playMasterGain, "master-gain", 1.0, "Master gain multiplier applied after mixing")
	playCmd.Flags().Float64Var(&playLimiterCeil, "limiter-ceiling", 0, "Hard-clip ceiling on the master bus (0 disables)")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "Verbose (debug) logging")
}

func runPlay(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	for _, f := range args {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			slog.Error("file not found", "path", f)
			os.Exit(1)
		}
	}

	slog.Info("initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	deviceIdx := playDeviceIdx
	if deviceIdx < 0 {
		idx, err := portaudio.DefaultOutputDevice()
		if err != nil {
			slog.Error("failed to resolve default output device", "error", err)
			os.Exit(1)
		}
		deviceIdx = idx
	}

	audioCfg := types.AudioConfig{
		SampleRate:      playSampleRate,
		Channels:        playChannels,
		FramesPerBuffer: playFrames,
	}
	slog.Info("audio configuration",
		"device_index", deviceIdx,
		"sample_rate", audioCfg.SampleRate,
		"channels", audioCfg.Channels,
		"frames_per_buffer", audioCfg.FramesPerBuffer)

	s := sink.New(deviceIdx)
	eng, err := engine.New(s, engine.Config{
		Audio:      audioCfg,
		ClockMode:  masterclock.Realtime,
		MaxSources: len(args) + 1,
	})
	if err != nil {
		slog.Error("failed to construct engine", "error", err)
		os.Exit(1)
	}

	if playMasterGain != 1.0 {
		if err := eng.AddMasterEffect(effects.NewGain(float32(playMasterGain))); err != nil {
			slog.Error("failed to add master gain effect", "error", err)
			os.Exit(1)
		}
	}
	if playLimiterCeil > 0 {
		if err := eng.AddMasterEffect(effects.NewLimiter(float32(playLimiterCeil))); err != nil {
			slog.Error("failed to add master limiter effect", "error", err)
			os.Exit(1)
		}
	}

	if playRecordPath != "" {
		if err := eng.StartRecording(playRecordPath); err != nil {
			slog.Error("failed to start recording", "error", err)
			os.Exit(1)
		}
		slog.Info("recording mix to file", "path", playRecordPath)
	}

	sources := make([]*filesource.FileSource, 0, len(args))
	for _, f := range args {
		slog.Info("opening file", "path", f)
		src, err := eng.AddFile(f, playLoop)
		if err != nil {
			slog.Error("failed to open file", "path", f, "error", err)
			os.Exit(1)
		}
		if playTempo != 1.0 {
			src.SetTempo(playTempo)
		}
		if playPitch != 0.0 {
			src.SetPitch(playPitch)
		}
		sources = append(sources, src)
	}

	if err := eng.Start(); err != nil {
		slog.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	for _, src := range sources {
		if err := src.Play(); err != nil {
			slog.Error("failed to start source", "error", err)
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	statusDone := make(chan struct{})
	go monitorPlayback(sources, statusDone)

	done := make(chan struct{})
	go func() {
		waitForEndOfStream(sources)
		close(done)
	}()

	select {
	case <-done:
		slog.Info("playback completed")
	case sig := <-sigChan:
		slog.Info("signal received, stopping playback", "signal", sig)
	}
	close(statusDone)

	if err := eng.Stop(); err != nil {
		slog.Error("failed to stop engine cleanly", "error", err)
	}
	slog.Info("exiting")
}

// waitForEndOfStream polls every source until each has either failed or
// reached end of stream (loop sources never do, so playback then only
// stops on signal).
func waitForEndOfStream(sources []*filesource.FileSource) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		done := true
		for _, src := range sources {
			switch src.State() {
			case types.EndOfStream, types.Error:
				// finished
			default:
				done = false
			}
		}
		if done {
			return
		}
	}
}

// monitorPlayback logs a combined playback status for every source every
// 2 seconds, mirroring the teacher's cmd/fileplayer.go monitorPlayback.
func monitorPlayback(sources []*filesource.FileSource, done chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, src := range sources {
				status := src.GetPlaybackStatus()
				playedSeconds := float64(status.PlayedSamples) / float64(status.SampleRate)
				bufferedSeconds := float64(status.BufferedSamples) / float64(status.SampleRate)
				slog.Info("playback status",
					"file", status.FileName,
					"played", fmt.Sprintf("%.2fs", playedSeconds),
					"buffered", fmt.Sprintf("%.3fs", bufferedSeconds),
					"elapsed", status.ElapsedTime.Round(time.Millisecond).String())
			}
		case <-done:
			return
		}
	}
}
