// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
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
	mock := flag.Bool("mock", false, "emulate the accelerometer")
	flag.Parse()

	log.Println("starting LIS3DSH register debug tool (standalone)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Println("Note: do not run posture_monitor at the same time, both drive the SPI bus")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunRegisterDebug(ctx, *mock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
