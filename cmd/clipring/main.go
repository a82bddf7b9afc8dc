// The clipring CLI records scripted takes from a synthetic encoder into the
// in-memory buffer, saves the buffer to a clip file and inspects clip files.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var versionGitCommit string
var versionBuildTime string

func setupLogLevel(c *cli.Context) error {
	logLevel, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(logLevel)
	return nil
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	version := fmt.Sprintf("%s.%s", versionGitCommit, versionBuildTime)

	app := &cli.App{
		Name:    "clipring",
		Usage:   "Rolling video buffer with take editing",
		Version: version,
	}

	app.Commands = []*cli.Command{
		captureCommand(),
		inspectCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
