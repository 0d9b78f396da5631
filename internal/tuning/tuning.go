package tuning

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning carries the operational knobs of the viewer. The framing and the
// defaults are part of the contract with the producer, so changing them
// needs a producer-side change too.
type Tuning struct {
	ListenHost string `yaml:"listen_host"`
	ListenPort int    `yaml:"listen_port"`

	// MissTolerance is how many consecutive snapshots an identity may be
	// absent from before its entity is removed.
	MissTolerance       int `yaml:"miss_tolerance"`
	DisconnectTimeoutMs int `yaml:"disconnect_timeout_ms"`
	ReadTimeoutMs       int `yaml:"read_timeout_ms"`

	// TransitionMs is the interpolation duration per target update.
	TransitionMs int `yaml:"transition_ms"`

	MaxFrameBytes int `yaml:"max_frame_bytes"`
	History       int `yaml:"history"`

	// ObserverListen is the diagnostics HTTP address; empty disables it.
	ObserverListen string `yaml:"observer_listen"`
}

func Defaults() Tuning {
	return Tuning{
		ListenHost:          "127.0.0.1",
		ListenPort:          5000,
		MissTolerance:       2,
		DisconnectTimeoutMs: 5000,
		ReadTimeoutMs:       1000,
		TransitionMs:        100,
		MaxFrameBytes:       4 << 20,
		History:             120,
		ObserverListen:      "127.0.0.1:8090",
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.normalize()
	return t, nil
}

// normalize clamps nonsensical values back to their defaults.
func (t *Tuning) normalize() {
	d := Defaults()
	if t.ListenHost == "" {
		t.ListenHost = d.ListenHost
	}
	if t.ListenPort <= 0 || t.ListenPort > 65535 {
		t.ListenPort = d.ListenPort
	}
	if t.MissTolerance < 0 {
		t.MissTolerance = d.MissTolerance
	}
	if t.DisconnectTimeoutMs <= 0 {
		t.DisconnectTimeoutMs = d.DisconnectTimeoutMs
	}
	if t.ReadTimeoutMs <= 0 {
		t.ReadTimeoutMs = d.ReadTimeoutMs
	}
	if t.TransitionMs <= 0 {
		t.TransitionMs = d.TransitionMs
	}
	if t.MaxFrameBytes <= 0 {
		t.MaxFrameBytes = d.MaxFrameBytes
	}
	if t.History < 2 {
		t.History = d.History
	}
}

func (t Tuning) ListenAddr() string {
	return net.JoinHostPort(t.ListenHost, strconv.Itoa(t.ListenPort))
}

func (t Tuning) DisconnectTimeout() time.Duration {
	return time.Duration(t.DisconnectTimeoutMs) * time.Millisecond
}

func (t Tuning) ReadTimeout() time.Duration {
	return time.Duration(t.ReadTimeoutMs) * time.Millisecond
}

func (t Tuning) Transition() time.Duration {
	return time.Duration(t.TransitionMs) * time.Millisecond
}
