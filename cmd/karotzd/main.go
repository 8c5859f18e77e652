package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/karotzctl/internal/app"
)

func main() {
	os.Exit(run())
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `Usage: %s [flags]

karotzd polls an OpenKarotz rabbit over HTTP, bridges its commands and
state to MQTT and serves Prometheus metrics.

Configuration is read from ~/.config/karotz/config.toml (or -config).
Any key can be overridden with a KAROTZ_* environment variable, for
example KAROTZ_ADDRESS=192.168.1.20 or KAROTZ_MQTT_BROKER=tcp://broker:1883.

Flags:
`, fs.Name())
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func run() int {
	flag.Usage = func() { usage(flag.CommandLine.Output(), flag.CommandLine) }
	configPath := flag.String("config", "", "config path (optional, defaults to ~/.config/karotz/config.toml)")
	pollSeconds := flag.Int("poll", 0, "status poll interval in seconds (optional, overrides the config)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{ConfigPath: *configPath}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "karotzd: %v\n", err)
		return 1
	}
	return 0
}
