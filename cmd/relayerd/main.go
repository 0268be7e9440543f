// Command relayerd runs the gasless transfer relay service: the HTTP intake
// API, the periodic relay loop and the Prometheus metrics endpoint.
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evvm/relay/api"
	"github.com/evvm/relay/config"
	"github.com/evvm/relay/fisher"
	"github.com/evvm/relay/logger"
	"github.com/evvm/relay/metrics"
	"github.com/evvm/relay/qrpayment"
	"github.com/evvm/relay/relayer"
	"github.com/evvm/relay/sponsor"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relayerd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)

	reserve, err := cfg.GasReserve()
	if err != nil {
		return err
	}

	chain, err := relayer.NewEVMClient(cfg.RPCURL, cfg.RelayerPrivateKey, cfg.ChainID)
	if err != nil {
		return err
	}

	f := fisher.New(fisher.Config{
		SupportedTokens: cfg.TokenWhitelist(),
		Logger:          log,
	})
	gate := sponsor.NewGate(chain, reserve, log)
	rel := relayer.New(f, gate, chain, relayer.Config{
		Interval:       cfg.RelayInterval,
		ConfirmTimeout: cfg.ConfirmTimeout,
		TokenAddresses: cfg.TokenAddresses(),
		Logger:         log,
	})

	m := metrics.New(prometheus.DefaultRegisterer, f)
	rel.OnTick = m.ObserveTick

	f.Subscribe(func(e fisher.Event) {
		log.Info().
			Str("event", string(e.Type)).
			Str("payment", e.Payment.ID).
			Str("status", string(e.Payment.Status)).
			Msg("payment event")
	})

	router := api.NewRouter(api.Config{
		Fisher:         f,
		Relayer:        rel,
		Gate:           gate,
		Codec:          qrpayment.NewCodec(cfg.QRScheme),
		RelayerAddress: chain.Address().Hex(),
		Logger:         log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go rel.Run(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("relayer", chain.Address().Hex()).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
