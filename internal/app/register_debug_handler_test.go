package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/lis3dsh"
	"github.com/relabs-tech/posture_monitor/internal/sensors"
)

func newDebugger(t *testing.T) (*RegisterDebugger, *sensors.MockBus) {
	t.Helper()
	bus := sensors.NewMockBus(17694)
	bus.Tilt = func() float64 { return 0 }
	tr, err := lis3dsh.NewTransport(bus, &gpiotest.Pin{N: "CS"})
	if err != nil {
		t.Fatal(err)
	}
	dev, err := lis3dsh.New(tr)
	if err != nil {
		t.Fatal(err)
	}
	return NewRegisterDebugger(dev), bus
}

func TestRegisterDebugger_handle(t *testing.T) {
	d, bus := newDebugger(t)

	data := []struct {
		name    string
		cmd     RegisterCmd
		typ     string
		value   string
		message string
	}{
		{"read who am i", RegisterCmd{Action: "read", Address: "0x0F"}, "register_data", "0x3F", ""},
		{"read ctrl4", RegisterCmd{Action: "read", Address: "0x20"}, "register_data", "0x37", ""},
		{"write offset", RegisterCmd{Action: "write", Address: "0x10", Value: "0x05"}, "register_data", "0x05", "write successful"},
		{"write read only", RegisterCmd{Action: "write", Address: "0x0F", Value: "0x00"}, "error", "", "register 0x0F is not writable"},
		{"bad address", RegisterCmd{Action: "read", Address: "20"}, "error", "", "invalid address format: 20"},
		{"missing address", RegisterCmd{Action: "read"}, "error", "", "missing addr field"},
		{"bad value", RegisterCmd{Action: "write", Address: "0x10", Value: "5"}, "error", "", "invalid value format: 5"},
		{"empty action", RegisterCmd{}, "error", "", "missing or invalid action field"},
		{"unknown action", RegisterCmd{Action: "set_spi_speed"}, "error", "", "unknown action: set_spi_speed"},
	}
	for _, line := range data {
		resp := d.handle(line.cmd)
		if resp.Type != line.typ || resp.Value != line.value || resp.Message != line.message {
			t.Errorf("%s: got %+v", line.name, resp)
		}
	}
	if v := bus.Register(0x10); v != 0x05 {
		t.Fatalf("OFF_X = %#02x, want 0x05", v)
	}
}

func TestRegisterDebugger_statusAndExport(t *testing.T) {
	d, bus := newDebugger(t)

	if resp := d.handle(RegisterCmd{Action: "detect"}); resp.Status != "detected" {
		t.Fatalf("detect = %+v", resp)
	}
	bus.MissingReads = 1
	if resp := d.handle(RegisterCmd{Action: "detect"}); resp.Status != "not_detected" {
		t.Fatalf("detect = %+v", resp)
	}

	bus.SetRegister(0x20, 0x00)
	if resp := d.handle(RegisterCmd{Action: "init"}); resp.Status != "initialized" {
		t.Fatalf("init = %+v", resp)
	}
	if v := bus.Register(0x20); v != 0x37 {
		t.Fatalf("CTRL_REG4 after init = %#02x", v)
	}

	resp := d.handle(RegisterCmd{Action: "read_all"})
	if resp.Type != "register_data" || resp.Registers["0x0F"] != "0x3F" || resp.Registers["0x25"] != "0x10" {
		t.Fatalf("read_all = %+v", resp)
	}

	resp = d.handle(RegisterCmd{Action: "export_config"})
	if resp.Type != "export_config" {
		t.Fatalf("export = %+v", resp)
	}
	var cfg RegisterConfigFile
	if err := json.Unmarshal([]byte(resp.Config), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Device != "lis3dsh" || cfg.Registers["0x20"] != "0x37" {
		t.Fatalf("exported = %+v", cfg)
	}

	if resp := d.handle(RegisterCmd{Action: "get_map"}); len(resp.RegisterMap) != len(sensors.LIS3DSHRegisterMap()) {
		t.Fatalf("get_map returned %d registers", len(resp.RegisterMap))
	}
}

func TestRegisterDebugger_websocket(t *testing.T) {
	d, _ := newDebugger(t)
	srv := httptest.NewServer(d.Routes(nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var resp RegisterResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != "register_map" {
		t.Fatalf("first message type = %q", resp.Type)
	}

	if err := conn.WriteJSON(RegisterCmd{Action: "read", Address: "0x0F"}); err != nil {
		t.Fatal(err)
	}
	resp = RegisterResponse{}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Address != "0x0F" || resp.Value != "0x3F" {
		t.Fatalf("read reply = %+v", resp)
	}
}

func TestRegisterDebugger_sample(t *testing.T) {
	d, _ := newDebugger(t)
	srv := httptest.NewServer(d.Routes(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sample")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var raw imu.Raw
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if raw != (imu.Raw{X: 0, Y: 0, Z: 17694}) {
		t.Fatalf("sample = %v", raw)
	}
}
