package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/cqkv/clipring/container"
	"github.com/cqkv/clipring/model"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the format and samples of a clip file",
		ArgsUsage: "<clip>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "samples", Usage: "List every sample"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one clip file")
			}
			sum, err := inspect(c.Args().First(), c.Bool("samples"), os.Stdout)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, sum)
			return nil
		},
	}
}

type summary struct {
	Format     model.Format
	Samples    int
	SyncFrames int
	Bytes      int64
	Duration   time.Duration
}

func (s summary) String() string {
	return fmt.Sprintf("%s %dx%d@%d: %d samples (%d sync), %d bytes, %s",
		s.Format.MimeType, s.Format.Width, s.Format.Height, s.Format.FrameRate,
		s.Samples, s.SyncFrames, s.Bytes, s.Duration)
}

func inspect(path string, listSamples bool, out io.Writer) (summary, error) {
	r, err := container.OpenReader(path)
	if err != nil {
		return summary{}, errors.Wrapf(err, "open %s", path)
	}
	defer r.Close()

	sum := summary{Format: r.Format}
	var first, last int64
	for {
		sample, pos, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, errors.Wrapf(err, "read sample %d", sum.Samples)
		}
		if sum.Samples == 0 {
			first = sample.TimestampUsec
		}
		last = sample.TimestampUsec
		sum.Samples++
		sum.Bytes += sample.Size
		if sample.Flags.IsSync() {
			sum.SyncFrames++
		}
		if listSamples {
			fmt.Fprintf(out, "%6d @%-10d pts=%-12d size=%-8d sync=%t\n",
				sum.Samples-1, pos.Offset, sample.TimestampUsec, sample.Size, sample.Flags.IsSync())
		}
	}
	sum.Duration = time.Duration(last-first) * time.Microsecond
	return sum, nil
}
