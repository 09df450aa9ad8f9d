package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"cloudpico-node/internal/config"
	"cloudpico-node/internal/hardware"
	"cloudpico-node/internal/mdns"
	"cloudpico-node/internal/mqtt"
	"cloudpico-node/internal/netinfo"
	"cloudpico-node/internal/router"
	"cloudpico-node/internal/sensor"
	"cloudpico-node/internal/serve"
	"cloudpico-node/internal/views"
)

func Run(ctx context.Context, cfg config.Config) error {
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	return run(ctx, cfg, ln)
}

// run owns ln and closes it before returning.
func run(ctx context.Context, cfg config.Config, ln net.Listener) error {
	defer func() {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("close listener", "err", err)
		}
	}()

	if err := views.LoadTemplates(); err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	periph, err := hardware.Open(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("open peripherals: %w", err)
	}
	defer func() {
		if err := periph.Close(); err != nil {
			slog.Warn("close peripherals", "err", err)
		}
	}()

	if periph.Indicator != nil {
		if err := periph.Indicator.On(); err != nil {
			slog.Warn("indicator on", "err", err)
		}
	}

	id := sensor.Identity{
		Name:         cfg.DeviceName,
		WiFiSSID:     cfg.WiFiSSID,
		BoundAddress: netinfo.BoundAddress(cfg.BindAddress, cfg.WiFiInterface, ln.Addr()),
	}
	slog.Info("boot",
		"name", id.Name,
		"ssid", id.WiFiSSID,
		"ip", id.BoundAddress,
		"listen", ln.Addr().String(),
		"url", views.LocalURL(id.Name),
	)

	g, gctx := errgroup.WithContext(ctx)

	var opts router.Options
	if cfg.MQTTEnabled() {
		client, err := mqtt.NewClient(cfg, slog.Default())
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		defer client.Disconnect()
		opts.Observer = client

		slog.Info("mqtt mirror enabled",
			"mqtt_broker", cfg.MQTTBroker,
			"mqtt_port", cfg.MQTTPort,
			"mqtt_client_id", cfg.MQTTClientID,
		)
		g.Go(func() error {
			// Serving never waits for the broker.
			if err := client.Connect(gctx); err != nil && gctx.Err() == nil {
				slog.Error("mqtt connect failed", "error", err)
			}
			return nil
		})
	}

	if cfg.MDNSEnable {
		adv, err := mdns.Advertise(mdns.Record{
			Name: id.Name,
			IP:   id.BoundAddress,
			Port: netinfo.Port(ln.Addr()),
			TXT:  []string{"path=" + views.MetricsPath},
		}, slog.Default())
		if err != nil {
			slog.Warn("mdns disabled", "err", err)
		} else {
			defer adv.Shutdown()
		}
	}

	var hooks []serve.Hook
	if periph.Indicator != nil {
		hooks = append(hooks, periph.Indicator.Blink)
	}

	loop := serve.New(ln, router.Default(sensor.NewReader(periph.ADC, periph.Barometer, periph.Health), id, opts), serve.Options{
		PollTimeout: cfg.PollTimeout,
		ReadTimeout: cfg.RequestReadTimeout,
		Logger:      slog.Default(),
		Hooks:       hooks,
	})

	if periph.Indicator != nil {
		if err := periph.Indicator.Off(); err != nil {
			slog.Warn("indicator off", "err", err)
		}
	}

	g.Go(func() error {
		return loop.Run(gctx)
	})

	err = g.Wait()
	slog.Info("node shutting down")
	return err
}
