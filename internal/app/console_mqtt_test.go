package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/orientation"
	"github.com/relabs-tech/posture_monitor/internal/posture"
)

func TestPrintReading(t *testing.T) {
	payload, err := json.Marshal(Reading{
		Raw:   imu.Raw{X: 1, Y: -2, Z: 17694},
		Mean:  0.5,
		Angle: 60,
		Pose:  orientation.Pose{Roll: 1.5, Pitch: 2.25},
		State: posture.Sitting,
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := printReading(&buf, payload); err != nil {
		t.Fatal(err)
	}
	want := "[TILT] angle= 60.00 mean=0.500 state=sitting  x=     1 y=    -2 z= 17694  roll=  1.50 pitch=  2.25\n"
	if buf.String() != want {
		t.Fatalf("got  %q\nwant %q", buf.String(), want)
	}
}

func TestPrintTransition(t *testing.T) {
	payload, err := json.Marshal(posture.Transition{
		From:  posture.Sitting,
		To:    posture.Lying,
		Angle: 29.5,
		Time:  time.Date(2026, 3, 4, 10, 20, 30, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := printTransition(&buf, payload); err != nil {
		t.Fatal(err)
	}
	if want := "[POSE] sitting -> lying at 29.50 degrees (10:20:30)\n"; buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestPrint_badPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := printReading(&buf, []byte("{")); err == nil {
		t.Error("expected error for truncated reading")
	}
	if err := printTransition(&buf, []byte(`{"from":"standing"}`)); err == nil {
		t.Error("expected error for unknown state")
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}
}
