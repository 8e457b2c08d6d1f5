// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/posture_monitor/internal/config"
	"github.com/relabs-tech/posture_monitor/internal/imu"
	"github.com/relabs-tech/posture_monitor/internal/sensors"
)

// RegisterDevice is the register-level view of the accelerometer.
type RegisterDevice interface {
	Init() error
	Detect() (bool, error)
	ReadRegister(addr byte) (byte, error)
	WriteRegister(addr, value byte) error
	ReadRaw() (imu.Raw, error)
}

// RegisterDebugger serves register access over websocket. Sessions share
// one bus, so every device access holds mu.
type RegisterDebugger struct {
	mu  sync.Mutex
	dev RegisterDevice
}

// NewRegisterDebugger returns a debugger for dev.
func NewRegisterDebugger(dev RegisterDevice) *RegisterDebugger {
	return &RegisterDebugger{dev: dev}
}

// RegisterCmd is a websocket request.
type RegisterCmd struct {
	Action  string `json:"action"` // "get_map", "read", "read_all", "write", "init", "detect", "export_config"
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterResponse is a websocket reply.
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "status", "export_config", "error"
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"` // for bulk read
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Status      string                 `json:"status,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
	Config      string                 `json:"config,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
}

// RegisterConfigFile represents the JSON structure for exported register configuration
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// HandleWS handles the WebSocket connection for register debugging
func (d *RegisterDebugger) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Send register map on connection
	if err := conn.WriteJSON(d.registerMap()); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	// Message loop
	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			break
		}
		if err := conn.WriteJSON(d.handle(cmd)); err != nil {
			log.Printf("register_debug: write error: %v", err)
			break
		}
	}
}

// handle routes a command and builds its reply.
func (d *RegisterDebugger) handle(cmd RegisterCmd) RegisterResponse {
	switch cmd.Action {
	case "get_map":
		return d.registerMap()
	case "read":
		return d.handleRead(cmd)
	case "read_all":
		return d.handleReadAll()
	case "write":
		return d.handleWrite(cmd)
	case "init":
		return d.handleInit()
	case "detect":
		return d.handleDetect()
	case "export_config":
		return d.handleExportConfig()
	case "":
		return errorResponse("missing or invalid action field")
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
	}
}

func (d *RegisterDebugger) handleRead(cmd RegisterCmd) RegisterResponse {
	if cmd.Address == "" {
		return errorResponse("missing addr field")
	}
	addr, err := sensors.ParseAddress(cmd.Address)
	if err != nil {
		return errorResponse(err.Error())
	}

	d.mu.Lock()
	value, err := d.dev.ReadRegister(addr)
	d.mu.Unlock()
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}

	return RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (d *RegisterDebugger) readAll() (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := make(map[string]string)
	for _, addr := range sensors.ReadableRegisters() {
		v, err := d.dev.ReadRegister(addr)
		if err != nil {
			return nil, fmt.Errorf("register 0x%02X: %w", addr, err)
		}
		regs[fmt.Sprintf("0x%02X", addr)] = fmt.Sprintf("0x%02X", v)
	}
	return regs, nil
}

func (d *RegisterDebugger) handleReadAll() RegisterResponse {
	regs, err := d.readAll()
	if err != nil {
		return errorResponse(fmt.Sprintf("read all error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Registers: regs,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (d *RegisterDebugger) handleWrite(cmd RegisterCmd) RegisterResponse {
	if cmd.Address == "" || cmd.Value == "" {
		return errorResponse("missing addr or value field")
	}
	addr, err := sensors.ParseAddress(cmd.Address)
	if err != nil {
		return errorResponse(err.Error())
	}
	var value byte
	if _, err := fmt.Sscanf(cmd.Value, "0x%X", &value); err != nil {
		return errorResponse(fmt.Sprintf("invalid value format: %s", cmd.Value))
	}
	if !sensors.IsRegisterWritable(addr) {
		return errorResponse(fmt.Sprintf("register 0x%02X is not writable", addr))
	}

	d.mu.Lock()
	err = d.dev.WriteRegister(addr, value)
	d.mu.Unlock()
	if err != nil {
		return errorResponse(fmt.Sprintf("write error: %v", err))
	}

	return RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	}
}

func (d *RegisterDebugger) handleInit() RegisterResponse {
	d.mu.Lock()
	err := d.dev.Init()
	d.mu.Unlock()
	if err != nil {
		return errorResponse(fmt.Sprintf("reinit error: %v", err))
	}
	return RegisterResponse{
		Type:    "status",
		Status:  "initialized",
		Message: "accelerometer reinitialized successfully",
	}
}

func (d *RegisterDebugger) handleDetect() RegisterResponse {
	d.mu.Lock()
	ok, err := d.dev.Detect()
	d.mu.Unlock()
	if err != nil {
		return errorResponse(fmt.Sprintf("detect error: %v", err))
	}
	status := "not_detected"
	if ok {
		status = "detected"
	}
	return RegisterResponse{Type: "status", Status: status}
}

func (d *RegisterDebugger) handleExportConfig() RegisterResponse {
	regs, err := d.readAll()
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}

	now := time.Now()
	configFile := RegisterConfigFile{
		Version:   1,
		Device:    "lis3dsh",
		Timestamp: now.Format(time.RFC3339),
		Registers: regs,
	}
	configJSON, err := json.Marshal(configFile)
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	return RegisterResponse{
		Type:     "export_config",
		Message:  "config exported",
		Config:   string(configJSON),
		Filename: fmt.Sprintf("lis3dsh_%s_registers.json", now.Format("20060102_150405")),
	}
}

func (d *RegisterDebugger) registerMap() RegisterResponse {
	return RegisterResponse{
		Type:        "register_map",
		RegisterMap: sensors.LIS3DSHRegisterMap(),
	}
}

func errorResponse(message string) RegisterResponse {
	return RegisterResponse{
		Type:    "error",
		Message: message,
	}
}

// ReadRaw reads one sample while holding the bus.
func (d *RegisterDebugger) ReadRaw() (imu.Raw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.ReadRaw()
}

// HandleSample serves one raw sample via REST API.
func (d *RegisterDebugger) HandleSample(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	raw, err := d.ReadRaw()
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error": "%v"}`, err), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(raw)
}

// Routes returns the register debug endpoints. cal may be nil.
func (d *RegisterDebugger) Routes(cal *CalibrationHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.HandleWS)
	mux.HandleFunc("/api/sample", d.HandleSample)
	if cal != nil {
		mux.HandleFunc("/ws/calibration", cal.HandleWS)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})
	return mux
}

// RunRegisterDebug serves the register debugger and guided calibration on
// REGISTER_DEBUG_PORT until ctx is cancelled.
func RunRegisterDebug(ctx context.Context, useMock bool) error {
	cfg := config.Get()

	var (
		acc *sensors.Accelerometer
		err error
	)
	if useMock {
		acc, err = sensors.OpenMockAccelerometer(cfg)
	} else {
		acc, err = sensors.OpenAccelerometer(cfg)
	}
	if err != nil {
		return err
	}
	defer acc.Close()

	dbg := NewRegisterDebugger(acc.Dev)
	cal := &CalibrationHandler{
		Source:   dbg,
		Samples:  cfg.CalibrationSamples,
		Interval: cfg.SampleEvery(),
		Dir:      cfg.CalibrationDir,
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RegisterDebugPort),
		Handler: dbg.Routes(cal),
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("register_debug: listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
