// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/orientation"
	"github.com/relabs-tech/posture_monitor/internal/posture"
	"github.com/relabs-tech/posture_monitor/internal/sensors"
)

// RunPostureMonitor opens the accelerometer and runs the sampling loop until
// ctx is done. With useMock the device and indicator are emulated.
func RunPostureMonitor(ctx context.Context, useMock bool) error {
	cfg := config.Get()

	// --- accelerometer and indicator ---
	var (
		acc       *sensors.Accelerometer
		indicator gpio.PinOut
		err       error
	)
	if useMock {
		acc, err = sensors.OpenMockAccelerometer(cfg)
		indicator = &gpiotest.Pin{N: "MOCK_LED", L: gpio.Low}
	} else {
		acc, err = sensors.OpenAccelerometer(cfg)
	}
	if err != nil {
		return err
	}
	defer acc.Close()

	if !useMock {
		if indicator, err = sensors.OpenIndicator(cfg); err != nil {
			return err
		}
	}

	filter, err := orientation.NewTiltFilter(cfg.FilterLength, cfg.FullScale)
	if err != nil {
		return err
	}
	machine, err := posture.New(indicator, posture.Thresholds{Sit: cfg.SitThreshold, Lie: cfg.LieThreshold})
	if err != nil {
		return err
	}

	out, err := OpenOutput(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	metrics := NewMetrics()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(metrics)}
		go func() {
			log.Printf("monitor: metrics listening on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("monitor: metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	// --- connect to MQTT ---
	var publisher Publisher
	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDMonitor)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("MQTT connect error: %w", token.Error())
		}
		defer client.Disconnect(250)
		log.Printf("monitor: connected to MQTT broker at %s", cfg.MQTTBroker)
		publisher = NewMQTTPublisher(client, cfg.TopicTilt, cfg.TopicPosture)
	}

	m := NewMonitor(acc.Dev, filter, machine, out, MonitorOptions{
		SampleInterval: cfg.SampleEvery(),
		RetryInterval:  cfg.DetectRetryEvery(),
		LogInterval:    cfg.LogInterval,
		Publisher:      publisher,
		Metrics:        metrics,
	})
	err = m.Run(ctx)
	log.Printf("monitor: stopped at %s", time.Now().Format(time.RFC3339))
	return err
}

func metricsMux(m *Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
