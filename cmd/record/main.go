// Command record captures one take from the default microphone and writes
// the artifact to a file. Useful for exercising the engine without the
// exam-practice UI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/aiexaminer/recorder-engine/internal/capture"
	_ "github.com/aiexaminer/recorder-engine/internal/capture/malgo"
	_ "github.com/aiexaminer/recorder-engine/internal/capture/portaudio"
	"github.com/aiexaminer/recorder-engine/internal/observability"
	"github.com/aiexaminer/recorder-engine/internal/playback"
	"github.com/aiexaminer/recorder-engine/internal/recorder"
)

func main() {
	output := pflag.StringP("output", "o", "take.wav", "output file for the artifact")
	maxDuration := pflag.Duration("max-duration", time.Minute, "hard recording ceiling")
	vadEnabled := pflag.Bool("vad", true, "auto-stop on sustained silence")
	silenceThreshold := pflag.Float64("silence-threshold", 0.1, "normalized silence level in [0,1]")
	silenceDuration := pflag.Duration("silence-duration", 2*time.Second, "silence window before auto-stop")
	sampleRate := pflag.Int("sample-rate", 16000, "capture sample rate in Hz")
	play := pflag.Bool("play", false, "play the take back after recording")
	logLevel := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	observability.InitLogger(*logLevel, true)
	log := observability.GetLogger()

	cfg := recorder.DefaultConfig()
	cfg.MaxDuration = *maxDuration
	cfg.EnableVAD = *vadEnabled
	cfg.SilenceThreshold = *silenceThreshold
	cfg.SilenceDuration = *silenceDuration
	cfg.SampleRate = *sampleRate
	cfg.ShowWaveform = false
	cfg.ShowQualityMeter = false

	ctx := context.Background()
	source, err := capture.Auto(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("no capture backend available")
	}

	done := make(chan recorder.Artifact, 1)
	engine, err := recorder.New(cfg, source, recorder.Callbacks{
		OnRecordingStart: func() {
			fmt.Println("recording... press Ctrl-C to stop")
		},
		OnRecordingStop: func(a recorder.Artifact, analytics recorder.AudioAnalytics) {
			fmt.Printf("recorded %.1fs  avg level %.3f  max %.3f  voice activity %.0f%%\n",
				analytics.DurationSeconds, analytics.AverageLevel,
				analytics.MaxLevel, analytics.VoiceActivityRatio*100)
			done <- a
		},
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bad recorder configuration")
	}
	defer engine.Close()

	// Two-step start: acquire the microphone, then record
	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("microphone unavailable")
	}
	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not begin recording")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	var artifact recorder.Artifact
	select {
	case artifact = <-done:
		// VAD auto-stop or duration ceiling
	case <-interrupt:
		if err := engine.Stop(); err != nil {
			log.Fatal().Err(err).Msg("stop failed")
		}
		artifact = <-done
	}

	if err := os.WriteFile(*output, artifact.Data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("could not write artifact")
	}
	fmt.Printf("wrote %s (%d bytes, %s)\n", *output, len(artifact.Data), artifact.MimeType)

	if *play {
		player, err := playback.NewController(cfg.SampleRate, cfg.Channels, log)
		if err != nil {
			log.Fatal().Err(err).Msg("playback unavailable")
		}
		handle, err := player.Play(artifact)
		if err != nil {
			log.Fatal().Err(err).Msg("playback failed")
		}
		<-handle.Done()
	}
}
