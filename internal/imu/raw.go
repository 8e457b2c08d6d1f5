package imu

import "fmt"

// Raw represents a single raw accelerometer sample in device counts.
type Raw struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

func (r Raw) String() string {
	return fmt.Sprintf("X:%d Y:%d Z:%d", r.X, r.Y, r.Z)
}

// RawSource is anything that can produce raw samples.
type RawSource interface {
	ReadRaw() (Raw, error)
}
