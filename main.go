package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uart-test/api"
	"uart-test/config"
	"uart-test/console"
	"uart-test/driver"
	"uart-test/logger"
	"uart-test/protocol"
	"uart-test/session"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Diagnostics (optional)
	if cfg.LogDir != "" {
		if err := logger.Init(cfg.LogDir); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		defer logger.Close()
	}

	// 3. List mode
	if cfg.List {
		driver.PrintPorts(os.Stdout)
		return
	}

	fmt.Println("UART Test for Sequence Game")
	fmt.Println(protocol.Rule('='))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Session ended: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	keys, err := console.Open(os.Stdin)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return err
	}
	defer keys.Close()

	state := session.NewStateMachine()
	opts := session.Options{
		Port:        cfg.Port,
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		Interval:    cfg.Interval,
		QuitKey:     cfg.QuitKey,
		Out:         os.Stdout,
		State:       state,
	}

	// 4. Monitor (optional)
	if cfg.WSAddr != "" {
		hub := api.NewHub(state.GetStatusInfo)
		state.SetCallback(func(info session.StatusInfo) { hub.Observe(session.StatusEvent(info)) })
		opts.Observer = hub

		srv := api.NewServer(cfg.WSAddr, hub)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Monitor server: %v", err)
				fmt.Printf("Monitor unavailable: %v\n", err)
			}
		}()
		fmt.Printf("Monitor listening on %s/ws\n", cfg.WSAddr)
		defer func() {
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	// 5. Interactive session; every path closes the port
	return session.Launch(ctx, opts, driver.OpenSerial, keys)
}
