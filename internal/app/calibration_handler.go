// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relabs-tech/posture_monitor/internal/calibration"
	"github.com/relabs-tech/posture_monitor/internal/imu"
)

// calibration steps, in order
var calibrationSteps = []string{"face-up", "face-down"}

// CalibrationHandler runs guided two-pose calibrations over a websocket.
type CalibrationHandler struct {
	Source   imu.RawSource
	Samples  int
	Interval time.Duration
	Dir      string
}

// CalibrationSession holds the state of an active calibration
type CalibrationSession struct {
	h    *CalibrationHandler
	conn *websocket.Conn

	mu    sync.Mutex
	step  int
	poses []calibration.PhaseStats
}

// WSMessage is a client request: next or cancel.
type WSMessage struct {
	Action string `json:"action"`
}

type WSResponse struct {
	Type    string                  `json:"type"` // step, stats, complete, error
	Step    string                  `json:"step,omitempty"`
	Stats   *calibration.PhaseStats `json:"stats,omitempty"`
	Results *calibration.Result     `json:"results,omitempty"`
	File    string                  `json:"file,omitempty"`
	Message string                  `json:"message,omitempty"`
}

// HandleWS handles the WebSocket connection for calibration
func (h *CalibrationHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	s := &CalibrationSession{h: h, conn: conn}
	s.send(WSResponse{Type: "step", Step: calibrationSteps[0]})

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			return
		}

		switch msg.Action {
		case "next":
			s.mu.Lock()
			done, err := s.runNextStep()
			s.mu.Unlock()
			if err != nil {
				s.send(WSResponse{Type: "error", Message: err.Error()})
				continue
			}
			if done {
				return
			}
		case "cancel":
			log.Printf("calibration: cancelled by user")
			return
		default:
			s.send(WSResponse{Type: "error", Message: "unknown action: " + msg.Action})
		}
	}
}

// runNextStep captures the current pose. It reports true once the report is written.
func (s *CalibrationSession) runNextStep() (bool, error) {
	pose := calibrationSteps[s.step]
	st, err := calibration.Capture(s.h.Source, pose, s.h.Samples, s.h.Interval)
	if err != nil {
		return false, err
	}
	s.poses = append(s.poses, st)
	s.send(WSResponse{Type: "stats", Step: pose, Stats: &st})

	s.step++
	if s.step < len(calibrationSteps) {
		s.send(WSResponse{Type: "step", Step: calibrationSteps[s.step]})
		return false, nil
	}
	if err := s.complete(); err != nil {
		// start over from the first pose
		s.step = 0
		s.poses = nil
		return false, err
	}
	return true, nil
}

func (s *CalibrationSession) complete() error {
	res, err := calibration.Solve(s.poses[0], s.poses[1])
	if err != nil {
		return err
	}
	name, err := calibration.WriteReport(s.h.Dir, res)
	if err != nil {
		return err
	}
	log.Printf("calibration: saved results to %s (FULL_SCALE=%.1f)", name, res.FullScale)

	s.send(WSResponse{Type: "complete", Results: &res, File: name})
	return nil
}

func (s *CalibrationSession) send(resp WSResponse) {
	if err := s.conn.WriteJSON(resp); err != nil {
		log.Printf("calibration: websocket write error: %v", err)
	}
}
