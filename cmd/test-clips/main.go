package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/hooplab/shotlog/internal/testclips"
	"github.com/hooplab/shotlog/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumClips     = 8
	defaultShotsPerClip = 3
	defaultTimeout      = 5 * time.Minute
)

func main() {
	var (
		numClips     = flag.Int("clips", defaultNumClips, "Number of scripted clips to generate and analyze")
		shotsPerClip = flag.Int("shots", defaultShotsPerClip, "Number of shot attempts per clip")
		workers      = flag.Int("workers", runtime.NumCPU(), "Number of analysis workers")
		noisy        = flag.Bool("noisy", false, "Add position and confidence jitter to scripted detections")
		timeout      = flag.Duration("timeout", defaultTimeout, "Overall run timeout")
		verbose      = flag.Bool("verbose", false, "Log every verified shot")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runCfg := &testclips.RunConfig{
		NumClips:     *numClips,
		ShotsPerClip: *shotsPerClip,
		Workers:      *workers,
		Noisy:        *noisy,
		Timeout:      *timeout,
		Verbose:      *verbose,
	}

	if err := testclips.Run(ctx, runCfg); err != nil {
		os.Stderr.WriteString("Scripted run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
