// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided full-scale calibration for the LIS3DSH.
//
// The device is held still in two poses, face up (+Z) and face down (-Z).
// Half the difference of the Z means is the count value of 1g, which goes
// into FULL_SCALE in the config file.
//
// Output:
//
//	Writes a JSON report under CALIBRATION_DIR (./calibration/ by default).
//
// Run:
//
//	go run ./cmd/calibration -config posture_config.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/relabs-tech/posture_monitor/internal/calibration"
	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/sensors"
)

func main() {
	in := bufio.NewReader(os.Stdin)

	configPath := flag.String("config", "posture_config.txt", "Path to configuration file")
	mock := flag.Bool("mock", false, "emulate the accelerometer")
	flag.Parse()

	fmt.Println("=== Guided Calibration (LIS3DSH full scale) ===")
	fmt.Println("This workflow will prompt you in the console and store a JSON report.")
	fmt.Println()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg := config.Get()

	var (
		acc *sensors.Accelerometer
		err error
	)
	if *mock {
		acc, err = sensors.OpenMockAccelerometer(cfg)
	} else {
		acc, err = sensors.OpenAccelerometer(cfg)
	}
	if err != nil {
		fatal(err)
	}
	defer acc.Close()

	ok, err := acc.Dev.Detect()
	if err != nil {
		fatal(err)
	}
	if !ok {
		fatal(fmt.Errorf("LIS3DSH not detected on %s", cfg.SPIDevice))
	}

	fmt.Printf("Step 1/2: place the board FLAT, face up, and do not touch it.\n")
	if *mock {
		acc.Mock.SetTilt(func() float64 { return 0 })
	}
	waitEnter(in, fmt.Sprintf("Press ENTER to capture %d samples...", cfg.CalibrationSamples))
	up, err := calibration.Capture(acc.Dev, "face-up", cfg.CalibrationSamples, cfg.SampleEvery())
	if err != nil {
		fatal(err)
	}
	printStats(up)

	fmt.Printf("\nStep 2/2: turn the board over, face down, and do not touch it.\n")
	if *mock {
		acc.Mock.SetTilt(func() float64 { return 180 })
	}
	waitEnter(in, fmt.Sprintf("Press ENTER to capture %d samples...", cfg.CalibrationSamples))
	down, err := calibration.Capture(acc.Dev, "face-down", cfg.CalibrationSamples, cfg.SampleEvery())
	if err != nil {
		fatal(err)
	}
	printStats(down)

	res, err := calibration.Solve(up, down)
	if err != nil {
		fatal(err)
	}

	fmt.Println()
	fmt.Printf("Full scale (counts per g): %.1f\n", res.FullScale)
	fmt.Printf("Z offset (counts):         %.1f\n", res.OffsetZ)
	fmt.Printf("Confidence:                %.2f\n", res.Confidence)
	for _, n := range res.Notes {
		fmt.Printf("Note: %s\n", n)
	}

	name, err := calibration.WriteReport(cfg.CalibrationDir, res)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("\nWrote: %s\n", name)
	fmt.Printf("Set FULL_SCALE=%.0f in %s to apply.\n", res.FullScale, *configPath)
}

func printStats(st calibration.PhaseStats) {
	fmt.Printf("%s mean (counts): X=%.1f Y=%.1f Z=%.1f | stddev Z=%.2f | confidence=%.2f\n",
		st.Pose, st.Mean.X, st.Mean.Y, st.Mean.Z, st.StdDev.Z, st.Confidence)
}

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
