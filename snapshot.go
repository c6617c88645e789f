// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// snapshot.go — state snapshot export/import so a debugging session
// (virtual anchor, rate, pause state) can be captured on one run and
// restored on another.

package tempo

import (
	"fmt"
	"time"
)

// stateSnapshot is the serialized form of the exportable clock state.
type stateSnapshot struct {
	BaseVirtualMS int64  `json:"base_virtual_ms" msgpack:"base_virtual_ms"`
	Rate          int    `json:"rate" msgpack:"rate"`
	Paused        bool   `json:"paused" msgpack:"paused"`
	AppVersion    string `json:"app_version,omitempty" msgpack:"app_version"`
}

// ExportState serializes the current virtual time, rate, and pause state
// through the configured Codec. With an EncryptionKey configured the
// payload is sealed with AES-256-GCM and prefixed so imports can detect
// it.
func (s *Service) ExportState() ([]byte, error) {
	s.mu.Lock()
	snap := stateSnapshot{
		BaseVirtualMS: s.tf.now().UnixMilli(),
		Rate:          s.tf.rate,
		Paused:        s.tf.paused,
		AppVersion:    s.cfg.AppVersion,
	}
	s.mu.Unlock()

	b, err := s.cfg.Codec.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.snapSealer != nil {
		return s.snapSealer.seal(b)
	}
	return b, nil
}

// ImportState restores a snapshot produced by ExportState: it jumps
// virtual time to the captured instant, applies the captured rate, and
// re-applies pause state. The jump sweeps the detectors like TimeTravelTo.
// Plaintext snapshots import regardless of the key; sealed snapshots
// require the key they were sealed with.
func (s *Service) ImportState(data []byte) error {
	if sealed(data) {
		if s.snapSealer == nil {
			return ErrEncryptionKeyRequired
		}
		plain, err := s.snapSealer.open(data)
		if err != nil {
			return err
		}
		data = plain
	}
	var snap stateSnapshot
	if err := s.cfg.Codec.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.BaseVirtualMS <= 0 {
		return fmt.Errorf("%w: missing base timestamp", ErrInvalidSnapshot)
	}

	if err := s.SetRate(snap.Rate); err != nil {
		return err
	}
	s.TimeTravelTo(time.UnixMilli(snap.BaseVirtualMS))
	if snap.Paused {
		s.Pause()
	} else {
		s.Resume()
	}
	return nil
}
