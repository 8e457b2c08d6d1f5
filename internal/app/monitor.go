// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/lis3dsh"
	"github.com/relabs-tech/posture_monitor/internal/orientation"
	"github.com/relabs-tech/posture_monitor/internal/posture"
)

// Device is the accelerometer as seen by the control loop.
type Device interface {
	Detect() (bool, error)
	ReadRaw() (imu.Raw, error)
}

// Reading is the outcome of one sampling cycle.
type Reading struct {
	Time  time.Time        `json:"time"`
	Raw   imu.Raw          `json:"raw"`
	G     float64          `json:"g"`     // normalized vertical sample
	Mean  float64          `json:"mean"`  // filtered vertical value
	Angle float64          `json:"angle"` // tilt in degrees
	Pose  orientation.Pose `json:"pose"`
	State posture.State    `json:"state"`
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	SampleInterval time.Duration
	RetryInterval  time.Duration
	LogInterval    int // cycles between roll/pitch log lines, 0 disables

	Publisher Publisher // optional
	Metrics   *Metrics  // optional
}

// Monitor is the sampling loop: read, filter, classify, report.
// It owns the device and is not safe for concurrent use.
type Monitor struct {
	dev     Device
	filter  *orientation.TiltFilter
	machine *posture.Machine
	out     io.Writer
	opts    MonitorOptions
	cycles  int
}

// NewMonitor returns a Monitor writing one text line per cycle to out.
func NewMonitor(dev Device, filter *orientation.TiltFilter, machine *posture.Machine, out io.Writer, opts MonitorOptions) *Monitor {
	return &Monitor{
		dev:     dev,
		filter:  filter,
		machine: machine,
		out:     out,
		opts:    opts,
	}
}

// WaitForDevice polls Detect until the accelerometer answers. There is no
// attempt limit; it only returns early when ctx is done.
func (m *Monitor) WaitForDevice(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if m.opts.Metrics != nil {
			m.opts.Metrics.detectAttempts.Inc()
		}
		ok, err := m.dev.Detect()
		switch {
		case err != nil:
			log.Printf("monitor: detect error: %v", err)
		case ok:
			log.Printf("monitor: accelerometer detected after %d attempt(s)", attempt)
			return nil
		default:
			log.Println("monitor: could not detect accelerometer")
		}

		t := time.NewTimer(m.opts.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Step runs one cycle and reports whether the posture changed.
func (m *Monitor) Step(now time.Time) (Reading, bool, error) {
	raw, err := m.dev.ReadRaw()
	if err != nil {
		if m.opts.Metrics != nil {
			m.opts.Metrics.readErrors.Inc()
		}
		return Reading{}, false, fmt.Errorf("read accelerometer: %w", err)
	}

	g := m.filter.Normalize(raw.Z)
	m.filter.Add(g)
	mean := m.filter.Mean()
	angle := orientation.TiltFromG(mean)

	prev := m.machine.State()
	state, changed, err := m.machine.Step(angle)
	if err != nil {
		log.Printf("monitor: %v", err)
	}

	fmt.Fprintf(m.out, "angle: %.2f degrees \r\n", angle)

	r := Reading{
		Time:  now,
		Raw:   raw,
		G:     g,
		Mean:  mean,
		Angle: angle,
		Pose:  lis3dsh.AnglesFromRaw(raw),
		State: state,
	}
	m.cycles++

	if m.opts.Metrics != nil {
		m.opts.Metrics.observe(r, changed)
	}
	if m.opts.LogInterval > 0 && m.cycles%m.opts.LogInterval == 0 {
		log.Printf("monitor: cycle %d raw %s | %s | tilt %.2f (%s)", m.cycles, raw, r.Pose, angle, state)
	}

	if changed {
		tr := posture.Transition{From: prev, To: state, Angle: angle, Time: now}
		log.Printf("monitor: posture %s -> %s at %.2f degrees", prev, state, angle)
		if m.opts.Publisher != nil {
			if err := m.opts.Publisher.PublishTransition(tr); err != nil {
				log.Printf("monitor: publish transition: %v", err)
			}
		}
	}
	if m.opts.Publisher != nil {
		if err := m.opts.Publisher.PublishReading(r); err != nil {
			log.Printf("monitor: publish reading: %v", err)
		}
	}
	return r, changed, nil
}

// Run waits for the device and then samples until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.WaitForDevice(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ticker := time.NewTicker(m.opts.SampleInterval)
	defer ticker.Stop()

	for {
		if _, _, err := m.Step(time.Now()); err != nil {
			log.Printf("monitor: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
