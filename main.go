package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/config"
	"github.com/dmorgan81/genserve/internal/handler"
	"github.com/dmorgan81/genserve/internal/inject"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/dmorgan81/genserve/internal/server"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configFile := flag.String("config", os.Getenv("GENSERVE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.New(os.Stderr, log.WithLevel(log.ParseLevel(cfg.Log.Level)))
	ctx, stop := signal.NotifyContext(log.NewContext(context.Background(), logger), os.Interrupt, syscall.SIGTERM)
	defer stop()

	injector := inject.Setup(ctx, cfg)
	srv := server.New(cfg.Server, logger)
	do.MustInvoke[*handler.Handler](injector).Register(srv)

	handle := do.MustInvoke[*capability.Handle](injector)
	loader := do.MustInvoke[capability.Loader](injector)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(srv.Run)
	group.Go(func() error {
		// A failed load leaves the server up, reporting model_loaded=false.
		_ = handle.Load(ctx, loader)
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	err = group.Wait()
	if shutdownErr := injector.Shutdown(); shutdownErr != nil {
		logger.Warn("injector shutdown", "error", shutdownErr)
	}
	if err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
