// cmd/scope/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"scope-service/internal/config"
	"scope-service/internal/discovery"
	"scope-service/internal/protocol"
	"scope-service/internal/scope"
	"scope-service/internal/server"
	"scope-service/internal/utils"
)

const usage = `usage: scope <command> [arguments]

commands:
  version            print service name and version
  info               list attachment points an instrument could be opened on
  read [file]        take one acquisition and write its sample table
  serve              run the monitor HTTP server
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.CloseLogger(logger)

	switch os.Args[1] {
	case "version":
		fmt.Printf("%s %s\n", cfg.App.Name, cfg.App.Version)
	case "info":
		runInfo(cfg, logger)
	case "read":
		runRead(cfg, logger, os.Args[2:])
	case "serve":
		runServe(cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// openSession connects to the instrument, asking the operator what to do
// when the connection fails: abort, retry after fixing the cabling, or
// continue without an instrument.
func openSession(cfg *config.Config, logger *zap.Logger) *scope.Session {
	stdin := bufio.NewReader(os.Stdin)

	for {
		transport, err := protocol.CreateTransport(&cfg.Transport, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "transport configuration: %v\n", err)
			os.Exit(1)
		}

		session := scope.NewSession(transport, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = session.Connect(ctx)
		cancel()
		if err == nil {
			return session
		}

		fmt.Fprintf(os.Stderr, "could not connect to instrument: %v\n", err)
		fmt.Fprint(os.Stderr, "[a]bort, [r]etry or [c]ontinue without instrument? ")

		answer, readErr := stdin.ReadString('\n')
		if readErr != nil {
			os.Exit(1)
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "r", "retry":
			continue
		case "c", "continue":
			return scope.NewDetachedSession(logger)
		default:
			os.Exit(1)
		}
	}
}

// runInfo prints the attachment-point report as indented JSON
func runInfo(cfg *config.Config, logger *zap.Logger) {
	report := discovery.Probe(
		cfg.Transport.USB.VendorID,
		cfg.Transport.USB.ProductID,
		cfg.Transport.Line.Pattern,
		logger,
	)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode report: %v\n", err)
		os.Exit(1)
	}
}

// runRead takes one acquisition and writes the sample table to the given
// file, or to stdout when no file is named
func runRead(cfg *config.Config, logger *zap.Logger, args []string) {
	session := openSession(cfg, logger)
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	acquisition, err := session.Acquire(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acquisition failed: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if len(args) > 0 {
		file, err := os.Create(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", args[0], err)
			os.Exit(1)
		}
		defer file.Close()
		out = file
	}

	if err := acquisition.WriteTable(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write sample table: %v\n", err)
		os.Exit(1)
	}
}

// runServe runs the monitor server until interrupted
func runServe(cfg *config.Config, logger *zap.Logger) {
	session := openSession(cfg, logger)
	defer session.Close()

	monitorServer := server.New(cfg, session, logger)

	go func() {
		if err := monitorServer.Run(); err != nil {
			logger.Fatal("Monitor server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := monitorServer.Shutdown(ctx); err != nil {
		logger.Error("Monitor server shutdown error", zap.Error(err))
	} else {
		logger.Info("Monitor server stopped")
	}
}
