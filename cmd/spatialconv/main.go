// Command spatialconv converts a side-by-side stereoscopic video file
// into a spatial (two-layer stereo) video file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"

	"github.com/xaionaro-go/spatialconv/converter"
	"github.com/xaionaro-go/spatialconv/logger"
	"github.com/xaionaro-go/spatialconv/media"
	"github.com/xaionaro-go/spatialconv/media/libav"
)

func main() {
	// parse the input

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [options] <input-file> <output-file>\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a TOML config file")
	buffers := pflag.Int("buffers", converter.DefaultRetainedBufferCountHint, "per-eye frame buffer pool size")
	videoCodec := pflag.String("vcodec", "", "video encoder, empty means the default")

	pflag.Parse()
	if len(pflag.Args()) != 2 {
		pflag.Usage()
		os.Exit(1)
	}
	inputPath := pflag.Arg(0)
	outputPath := pflag.Arg(1)

	cfg := &config{}
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	// explicit flags win over the config file
	if pflag.CommandLine.Changed("buffers") || cfg.Buffers <= 0 {
		cfg.Buffers = *buffers
	}
	if pflag.CommandLine.Changed("vcodec") || cfg.VideoCodec == "" {
		cfg.VideoCodec = *videoCodec
	}

	// init the context

	ctx := withLogger(context.Background(), loggerLevel)
	ctx, cancelFn := context.WithCancel(ctx)
	defer func() {
		logger.Debugf(ctx, "canceling context...")
		cancelFn()
	}()
	defer belt.Flush(ctx)

	// run the conversion

	c := converter.New(converter.Config{
		DemuxerFactory:          libav.Demux,
		MuxerFactory:            libav.Mux,
		Access:                  media.FileAccess{},
		RetainedBufferCountHint: cfg.Buffers,
		VideoCodecName:          cfg.VideoCodec,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	observability.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case sig := <-sigCh:
			logger.Infof(ctx, "received %v, cancelling the conversion", sig)
			if err := c.Cancel(ctx, outputPath); err != nil {
				logger.Errorf(ctx, "unable to cancel: %v", err)
			}
		}
	})

	observability.Go(ctx, func(ctx context.Context) {
		reportProgress(ctx, c)
	})

	result, err := c.Convert(ctx, inputPath, outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		os.Exit(1)
	}
	if result == nil {
		fmt.Fprintf(os.Stderr, "\nthe conversion finished, but the output file could not be inspected\n")
		return
	}

	fmt.Fprintf(os.Stderr,
		"\ndone: '%s' (%s, %s of video) in %s\n",
		result.OutputPath,
		humanize.IBytes(uint64(result.OutputSizeBytes)),
		result.OutputDuration.Round(time.Millisecond),
		result.Elapsed.Round(time.Millisecond),
	)
}

func reportProgress(ctx context.Context, c *converter.Converter) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		progress := c.Progress()
		if !progress.IsProcessing {
			continue
		}
		if progress.TotalFrames == 0 {
			fmt.Fprintf(os.Stderr, "\rprocessed %d frames...", progress.FramesProcessed)
			continue
		}
		fmt.Fprintf(os.Stderr,
			"\rprocessed %d/%d frames (%d%%), ~%s remaining ",
			progress.FramesProcessed,
			progress.TotalFrames,
			progress.FramesProcessed*100/progress.TotalFrames,
			progress.TimeRemaining.Round(time.Second),
		)
	}
}
