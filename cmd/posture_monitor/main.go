// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/posture_monitor/internal/app"
	"github.com/relabs-tech/posture_monitor/internal/config"
)

func main() {
	configPath := flag.String("config", "./posture_config.txt", "path to configuration file")
	mock := flag.Bool("mock", false, "emulate the accelerometer and LED")
	flag.Parse()

	log.Println("starting posture monitor (LIS3DSH → tilt → LED, MQTT)")

	// Load configuration, falling back to defaults when there is no file
	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		log.Printf("config %s not found, using defaults", *configPath)
		config.InitGlobalDefault()
	} else if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunPostureMonitor(ctx, *mock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Println("posture monitor stopped")
}
