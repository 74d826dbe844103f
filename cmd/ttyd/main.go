package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/behrlich/ttyline"
	"github.com/behrlich/ttyline/devices"
	"github.com/behrlich/ttyline/internal/logging"
)

func main() {
	var (
		verbose    = flag.Bool("v", false, "Verbose output")
		jsonLogs   = flag.Bool("json", false, "Log in JSON format")
		serialPath = flag.String("serial", "", "Optional tty device node to attach as serial line 0 (e.g. /dev/ttyUSB0)")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	if *jsonLogs {
		logConfig.Format = "json"
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	server := ttyline.NewServer(&ttyline.Config{Logger: logger})

	// Console 0 renders to stdout and is fed from stdin.
	console := devices.NewConsole(os.Stdout)
	console.SetWake(server.Kick)
	if err := server.RegisterDevice(0, console); err != nil {
		logger.Error("failed to register console", "error", err)
		os.Exit(1)
	}

	// A pty pair on the first pty minor, for programs that want a
	// cooked line without a display.
	pty := devices.NewPTY()
	pty.SetWake(server.Kick)
	if err := server.RegisterDevice(ttyline.FirstPTYMinor, pty); err != nil {
		logger.Error("failed to register pty", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var serial *devices.Serial
	if *serialPath != "" {
		var err error
		serial, err = devices.OpenSerial(*serialPath)
		if err != nil {
			logger.Error("failed to open serial device", "path", *serialPath, "error", err)
			os.Exit(1)
		}
		if err := server.RegisterDevice(ttyline.FirstSerialMinor, serial); err != nil {
			logger.Error("failed to register serial line", "error", err)
			os.Exit(1)
		}
		go serial.Pump(ctx, server.Kick)
		logger.Info("serial line attached", "path", *serialPath)
	}

	// Pump stdin into the console as keyboard input.
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				console.Feed(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig)
		cancel()
	}()

	logger.Info("ttyd running", "console_minor", 0, "pty_minor", ttyline.FirstPTYMinor)
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	snap := server.Metrics().Snapshot()
	logger.Info("final stats",
		"reads", snap.ReadOps,
		"writes", snap.WriteOps,
		"bytes_in", snap.BytesIn,
		"bytes_out", snap.BytesOut,
		"echo_chars", snap.EchoChars)
}
