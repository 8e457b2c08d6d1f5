package orientation

import "fmt"

// Pose holds accelerometer-derived roll and pitch in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

func (p Pose) String() string {
	return fmt.Sprintf("roll=%.2f pitch=%.2f", p.Roll, p.Pitch)
}

// Source is anything that can provide poses over time.
type Source interface {
	ReadAngles() (Pose, error)
}
