// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	//nolint:gosec
	_ "net/http/pprof"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/jvm-stacks/internal/controller"
	"go.opentelemetry.io/jvm-stacks/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package calls os.Exit(2) on flag parse errors, if ExitOnError is set
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		return parseError("Failure to parse arguments: %v", err)
	}

	if cfg.Version {
		fmt.Printf("%s\n", vc.Version())
		return exitSuccess
	}

	if cfg.VerboseMode {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		cfg.Dump()
	}

	if code := sanityCheck(cfg); code != exitSuccess {
		return code
	}

	// Context to drive main goroutine and the sampler.
	mainCtx, mainCancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer mainCancel()

	log.Infof("Starting %s", vc.Banner())

	ctlr := controller.New(cfg)
	if err := ctlr.Start(mainCtx); err != nil {
		var errCode controller.ErrorWithExitCode
		if errors.As(err, &errCode) {
			log.Error(err)
			return exitCode(errCode.Code())
		}
		return failure("Failed to start sampling: %v", err)
	}
	defer ctlr.Shutdown()

	g, ctx := errgroup.WithContext(mainCtx)

	if cfg.PprofAddr != "" {
		server := &http.Server{
			Addr:              cfg.PprofAddr,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving pprof on %s failed: %w", cfg.PprofAddr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	// SIGUSR1 requests an immediate sampling round.
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, unix.SIGUSR1)
	defer signal.Stop(usr1)
	g.Go(func() error {
		for {
			select {
			case <-usr1:
				ctlr.Trigger(ctx)
			case <-ctx.Done():
				return nil
			}
		}
	})

	// Block waiting for a signal to indicate the program should terminate
	if err := g.Wait(); err != nil {
		return failure("%v", err)
	}

	log.Info("Exiting ...")
	return exitSuccess
}

func sanityCheck(cfg *controller.Config) exitCode {
	if err := cfg.Validate(); err != nil {
		return parseError("Invalid arguments: %v", err)
	}
	return exitSuccess
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
