package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/docker/docker/client"
	"github.com/fatih/color"
	"github.com/gaia-platform/gdev/pkg/app"
	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/gaia-platform/gdev/pkg/utils"
	"github.com/go-errors/errors"
	"github.com/jesseduffield/yaml"
)

var (
	commit      string
	version     = "unversioned"
	date        string
	buildSource = "unknown"
)

func main() {
	info := fmt.Sprintf(
		"%s\nDate: %s\nBuildSource: %s\nCommit: %s\nOS: %s\nArch: %s",
		version,
		date,
		buildSource,
		commit,
		runtime.GOOS,
		runtime.GOARCH,
	)

	commandLine, err := app.ParseCommandLine(os.Args[1:], info)
	if err != nil {
		fail(err.Error())
	}

	if commandLine.PrintConfig {
		var buf bytes.Buffer
		encoder := yaml.NewEncoder(&buf)
		err := encoder.Encode(config.GetDefaultConfig())
		if err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("%v\n", buf.String())
		os.Exit(0)
	}

	appConfig, err := config.NewAppConfig("gdev", version, commit, date, buildSource, commandLine.Debug)
	if err != nil {
		fail(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdev, err := app.NewApp(ctx, appConfig, commandLine)
	if err == nil {
		err = gdev.Run(ctx, commandLine.Action)
	}
	_ = gdev.Close()

	if err != nil {
		if gdev.Tr == nil {
			fail(err.Error())
		}

		if errMessage, known := gdev.KnownError(err); known {
			fail(errMessage)
		}

		if client.IsErrConnectionFailed(err) {
			fail(gdev.Tr.ConnectionFailed)
		}

		newErr := errors.Wrap(err, 0)
		stackTrace := newErr.ErrorStack()
		gdev.Log.Debug(stackTrace)

		fail(fmt.Sprintf("%s\n\n%s", gdev.Tr.ErrorOccurred, err.Error()))
	}
}

func fail(message string) {
	fmt.Fprintln(os.Stderr, utils.ColoredString(message, color.FgRed))
	os.Exit(1)
}
