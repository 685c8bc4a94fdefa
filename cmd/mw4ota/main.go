// mw4ota updates costume controller firmware and display settings over Bluetooth LE.
//
// Usage:
//
//	mw4ota [flags] update            check the release manifest and update if stale
//	mw4ota [flags] text <string>     show text on the costume display
//	mw4ota [flags] brightness <n>    set display brightness (0-255)
//	mw4ota [flags] watch             check for updates on the configured schedule
//	mw4ota [flags] version           print tool and device firmware versions
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/moffa90/go-mw4ota/internal/config"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := flag.String("config", "mw4ota.yaml", "Path to the YAML configuration file")
	simulate := flag.Bool("simulate", false, "Use an in-memory simulated device instead of Bluetooth")
	imagePath := flag.String("image", "", "Flash a local firmware image instead of the release manifest")
	imageVersion := flag.Uint("image-version", 0, "Firmware version of the -image file")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	retries := flag.Int("retries", 0, "Update attempts, each from offset zero (overrides retry.attempts)")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		pterm.Error.Println(fmt.Sprintf("config: %v", err))
		os.Exit(1)
	}
	if *debugMode {
		cfg.Logger.Level = "debug"
	}
	if *retries > 0 {
		cfg.Retry.Attempts = *retries
	}

	log := newLogger(cfg.Logger.Level)
	a := newApp(cfg, log, options{
		simulate:     *simulate,
		imagePath:    *imagePath,
		imageVersion: uint32(*imageVersion),
	})

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "update":
		err = a.update(ctx)
	case "text":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = a.setText(ctx, args[1])
	case "brightness":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		level, perr := strconv.Atoi(args[1])
		if perr != nil {
			log.Error("brightness must be an integer", "value", args[1])
			os.Exit(2)
		}
		err = a.setBrightness(ctx, level)
	case "watch":
		err = a.watch(ctx)
	case "version":
		err = a.printVersion(ctx)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `mw4ota %s

Usage:
  mw4ota [flags] update
  mw4ota [flags] text <string>
  mw4ota [flags] brightness <0-255>
  mw4ota [flags] watch
  mw4ota [flags] version

Flags:
`, version)
	flag.PrintDefaults()
}
