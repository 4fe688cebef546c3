// Package main runs the MasterLink Gateway bridge engine against a
// configured hub and logs the events it observes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/giachello/mlgw/mlgw"

	"github.com/MatusOllah/slogcolor"
)

var isVerbose = flag.Bool("verbose", false, "Enable display of DEBUG log messages")
var configFile = flag.String("config", "config.yaml", "Path to the gateway configuration file")

func main() {
	flag.Parse()

	opts := slogcolor.DefaultOptions
	if *isVerbose {
		opts.Level = slog.LevelDebug
	} else {
		opts.Level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))

	conf, err := mlgw.LoadLocalConfig(*configFile)
	if err != nil {
		slog.Error("Unable to load configuration file", "fn", *configFile, "err", err)
		os.Exit(1)
	}
	slog.Debug("Loaded configuration", "fn", *configFile)

	gw := mlgw.NewGateway(conf.Credentials, conf.Gateway)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	if err := gw.Start(ctx); err != nil {
		slog.Error("Gateway failed to start", "err", mlgw.UserFacingError(err), "detail", err)
		os.Exit(1)
	}
	slog.Info("Gateway ready")

	discoverCtx, cancelDiscover := context.WithTimeout(ctx, 15*time.Second)
	defer cancelDiscover()
	if err := gw.Discover(discoverCtx); err != nil {
		slog.Warn("Discovery did not complete", "err", err)
	}

	events := make(chan mlgw.Event, 64)
	token := gw.Events().Subscribe(events)
	defer gw.Events().Unsubscribe(token)

	slog.Info("Starting main loop")
loop:
	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case mlgw.EventMLTelegram:
				slog.Debug("ML_TELEGRAM", "telegram", ev.ML.Telegram, "correlation_id", ev.CorrelationID)
			case mlgw.EventMLGWTelegram:
				slog.Debug("MLGW_TELEGRAM", "payload_type", ev.MLGW.PayloadType, "correlation_id", ev.CorrelationID)
			}
		case <-time.After(10 * time.Second):
			slog.Debug("gateway state", "state", gw.Debug())
		case <-ctx.Done():
			slog.Info("Exiting due to signal")
			break loop
		}
	}

	gw.Stop()
}
