// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration estimates the accelerometer Z full scale from two
// static poses: board face up and board face down.
//
// With the board at rest face up the Z axis reads +1g, face down it reads -1g.
// Half the difference of the two means is the count value of 1g, which is what
// FULL_SCALE expects. Half the sum is the Z zero-g offset.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/relabs-tech/posture_monitor/internal/imu"
)

const (
	SchemaVersion = 1

	// stillness heuristics in raw counts
	stillStdGood = 30.0
	stillStdBad  = 300.0

	confFloor = 0.05
)

// Vec3 is a per-axis value in raw counts.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PhaseStats summarizes one static capture.
type PhaseStats struct {
	Pose        string  `json:"pose"`
	Samples     int     `json:"samples"`
	DurationSec float64 `json:"duration_sec"`
	Mean        Vec3    `json:"mean"`
	StdDev      Vec3    `json:"stddev"`
	Confidence  float64 `json:"confidence"`
}

// Result is the calibration report written to disk.
type Result struct {
	SchemaVersion int    `json:"schema_version"`
	CalibrationAt string `json:"calibration_at"` // RFC3339

	FaceUp   PhaseStats `json:"face_up"`
	FaceDown PhaseStats `json:"face_down"`

	// FullScale is the suggested FULL_SCALE value (counts per g).
	FullScale  float64 `json:"full_scale"`
	OffsetZ    float64 `json:"offset_z"`
	Confidence float64 `json:"confidence"`

	Notes []string `json:"notes,omitempty"`
}

var ErrNoSamples = errors.New("calibration: no samples captured")

// Capture reads n samples from src, waiting interval between reads.
func Capture(src imu.RawSource, pose string, n int, interval time.Duration) (PhaseStats, error) {
	if n < 1 {
		return PhaseStats{}, ErrNoSamples
	}
	start := time.Now()
	values := make([]Vec3, 0, n)
	for i := 0; i < n; i++ {
		r, err := src.ReadRaw()
		if err != nil {
			return PhaseStats{}, fmt.Errorf("calibration: %s sample %d: %w", pose, i, err)
		}
		values = append(values, Vec3{X: float64(r.X), Y: float64(r.Y), Z: float64(r.Z)})
		if interval > 0 && i < n-1 {
			time.Sleep(interval)
		}
	}
	st := ComputeStats(values)
	st.Pose = pose
	st.DurationSec = time.Since(start).Seconds()
	return st, nil
}

// ComputeStats returns the mean, population standard deviation and stillness
// confidence of values.
func ComputeStats(values []Vec3) PhaseStats {
	st := PhaseStats{Samples: len(values)}
	if len(values) == 0 {
		return st
	}
	n := float64(len(values))
	for _, v := range values {
		st.Mean.X += v.X
		st.Mean.Y += v.Y
		st.Mean.Z += v.Z
	}
	st.Mean = Vec3{X: st.Mean.X / n, Y: st.Mean.Y / n, Z: st.Mean.Z / n}

	var vx, vy, vz float64
	for _, v := range values {
		dx, dy, dz := v.X-st.Mean.X, v.Y-st.Mean.Y, v.Z-st.Mean.Z
		vx += dx * dx
		vy += dy * dy
		vz += dz * dz
	}
	st.StdDev = Vec3{X: math.Sqrt(vx / n), Y: math.Sqrt(vy / n), Z: math.Sqrt(vz / n)}
	st.Confidence = StillnessConfidence(st.StdDev)
	return st
}

// StillnessConfidence maps the average axis deviation to [confFloor, 1].
func StillnessConfidence(std Vec3) float64 {
	s := (std.X + std.Y + std.Z) / 3
	switch {
	case s <= stillStdGood:
		return 1.0
	case s >= stillStdBad:
		return confFloor
	default:
		t := (s - stillStdGood) / (stillStdBad - stillStdGood)
		return clamp01(1.0 - 0.95*t)
	}
}

// Solve derives the full scale and Z offset from the two poses.
func Solve(up, down PhaseStats) (Result, error) {
	if up.Samples == 0 || down.Samples == 0 {
		return Result{}, ErrNoSamples
	}
	fs := (up.Mean.Z - down.Mean.Z) / 2
	if fs <= 0 {
		return Result{}, fmt.Errorf("calibration: face-up Z mean (%.1f) must exceed face-down Z mean (%.1f)", up.Mean.Z, down.Mean.Z)
	}
	res := Result{
		SchemaVersion: SchemaVersion,
		CalibrationAt: time.Now().Format(time.RFC3339),
		FaceUp:        up,
		FaceDown:      down,
		FullScale:     fs,
		OffsetZ:       (up.Mean.Z + down.Mean.Z) / 2,
		Confidence:    math.Min(up.Confidence, down.Confidence),
	}
	if math.Abs(res.OffsetZ) > 0.1*fs {
		res.Notes = append(res.Notes, fmt.Sprintf("large Z offset %.1f counts, check the board is level", res.OffsetZ))
	}
	if res.Confidence < 0.5 {
		res.Notes = append(res.Notes, "device moved during capture, consider repeating")
	}
	return res, nil
}

// WriteReport stores res as indented JSON under dir and returns the file path.
func WriteReport(dir string, res Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("calibration: create %s: %w", dir, err)
	}
	ts := time.Now().Format("2006-01-02T15-04-05Z07-00")
	name := filepath.Join(dir, fmt.Sprintf("lis3dsh_%s_calibration.json", ts))

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return "", fmt.Errorf("calibration: write report: %w", err)
	}
	return name, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
