package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cqkv/clipring"
	"github.com/cqkv/clipring/encoder"
	"github.com/cqkv/clipring/metrics"
	"github.com/cqkv/clipring/metrics/fileexporter"
	"github.com/cqkv/clipring/model"
)

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Record takes from a synthetic encoder and save the buffer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{"LOG_LEVEL"}},
			&cli.StringFlag{Name: "config", Value: "", TakesFile: true, Usage: "TOML config file", EnvVars: []string{"CLIPRING_CONFIG"}},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "", Usage: "Clip file path, a random name in the output dir if empty"},
			&cli.IntFlag{Name: "bit-rate", Usage: "Override the encoder bit rate"},
			&cli.IntFlag{Name: "frame-rate", Usage: "Override the frame rate"},
			&cli.IntFlag{Name: "span", Usage: "Override the buffered span in seconds"},
			&cli.StringFlag{Name: "policy", Usage: "Override the overflow policy (reject, evict)"},
			&cli.IntFlag{Name: "takes", Value: 2, Usage: "Number of takes to record"},
			&cli.DurationFlag{Name: "take-duration", Value: 2 * time.Second, Usage: "Length of each take"},
			&cli.DurationFlag{Name: "pause", Value: 500 * time.Millisecond, Usage: "Pause between takes"},
			&cli.BoolFlag{Name: "delete-last", Usage: "Remove the last take before saving"},
			&cli.DurationFlag{Name: "last", Usage: "Only save the newest part of the buffer"},
			&cli.StringFlag{Name: "metrics-file", Value: "", Usage: "Write metrics in text format to this file on exit"},
		},
		Action: func(c *cli.Context) error {
			if err := setupLogLevel(c); err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if path := c.String("metrics-file"); path != "" {
				metrics.Register(fileexporter.New(path))
			}
			return capture(c.Context, cfg, script{
				takes:        c.Int("takes"),
				takeDuration: c.Duration("take-duration"),
				pause:        c.Duration("pause"),
				deleteLast:   c.Bool("delete-last"),
				last:         c.Duration("last"),
				output:       c.String("output"),
			})
		},
	}
}

func loadConfig(c *cli.Context) (clipring.Config, error) {
	cfg := clipring.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = clipring.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if v := c.Int("bit-rate"); v != 0 {
		cfg.BitRate = v
	}
	if v := c.Int("frame-rate"); v != 0 {
		cfg.FrameRate = v
	}
	if v := c.Int("span"); v != 0 {
		cfg.DesiredSpanSec = v
	}
	if v := c.String("policy"); v != "" {
		cfg.OverflowPolicy = v
	}
	return cfg, cfg.Validate()
}

type script struct {
	takes        int
	takeDuration time.Duration
	pause        time.Duration
	deleteLast   bool
	last         time.Duration
	output       string
}

// capture runs the frame producer and the take script side by side, then
// saves the buffer.
func capture(ctx context.Context, cfg clipring.Config, sc script) error {
	enc := encoder.NewSynthetic(model.Format{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: cfg.FrameRate,
		BitRate:   cfg.BitRate,
	}, cfg.KeyframeIntervalSec)

	logger := logrus.WithField("component", "capture")
	sess, err := clipring.Open(enc,
		clipring.WithConfig(cfg),
		clipring.WithLogger(logger),
		clipring.WithStatusFunc(func(spanUsec int64) {
			logger.Debugf("buffered %s", time.Duration(spanUsec)*time.Microsecond)
		}),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.WithError(err).Warn("close session")
		}
	}()

	var recording atomic.Bool
	scriptDone := make(chan struct{})
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		ticker := time.NewTicker(cfg.FrameInterval())
		defer ticker.Stop()
		limited := false
		for {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			case <-scriptDone:
				return nil
			case <-ticker.C:
			}
			if !recording.Load() || sess.Exporting() || limited {
				continue
			}
			if err := enc.Feed(); err != nil {
				return errors.Wrap(err, "feed encoder")
			}
			if !sess.FrameAvailableSoon() {
				limited = true
				logger.Warnf("recording limit of %ds reached", cfg.MaxRecordSec)
			}
		}
	})

	eg.Go(func() error {
		defer close(scriptDone)
		for i := 0; i < sc.takes; i++ {
			if err := sess.BeginTake(); err != nil {
				return err
			}
			recording.Store(true)
			if err := sleep(egCtx, sc.takeDuration); err != nil {
				return err
			}
			recording.Store(false)
			if err := sess.EndTake(); err != nil {
				return err
			}
			logger.Infof("take %d done, %s recorded", i+1, sess.TotalRecorded())
			if err := sleep(egCtx, sc.pause); err != nil {
				return err
			}
		}
		if sc.deleteLast {
			if err := sess.RemoveLastTake(); err != nil {
				return err
			}
			logger.Infof("last take removed, %s recorded", sess.TotalRecorded())
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	var res clipring.ExportResult
	if sc.last > 0 {
		res = <-sess.SaveLast(ctx, sc.output, sc.last)
	} else {
		res = sess.Export(ctx, sc.output)
	}
	if res.Err != nil {
		return errors.Wrapf(res.Err, "save video (status %s)", res.Status)
	}
	fmt.Printf("%s: %d packets, %d bytes, %s\n", res.Path, res.Packets, res.Bytes, res.Span)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
