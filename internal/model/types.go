package model

import (
	"fmt"
	"time"
)

// Profile is one concrete Host block extracted from the ssh config.
type Profile struct {
	ID             string            `json:"id"`
	Address        string            `json:"address,omitempty"`
	User           string            `json:"user,omitempty"`
	Port           int               `json:"port,omitempty"`
	ProxyCommand   string            `json:"proxy_command,omitempty"`
	ProxyJump      string            `json:"proxy_jump,omitempty"`
	IdentityFile   string            `json:"identity_file,omitempty"`
	ConnectTimeout int               `json:"connect_timeout,omitempty"`
	Options        map[string]string `json:"options,omitempty"`
	Source         string            `json:"-"`
	Status         Status            `json:"-"`
}

// DialTarget returns the address probes should connect to.
func (p Profile) DialTarget() string {
	if p.Address != "" {
		return p.Address
	}
	return p.ID
}

// EffectivePort returns the configured port or 22.
func (p Profile) EffectivePort() int {
	if p.Port == 0 {
		return 22
	}
	return p.Port
}

// ProfileInput carries the editable fields of a profile. Empty strings and a
// zero port mean the field is unset.
type ProfileInput struct {
	ID           string
	Address      string
	User         string
	Port         int
	ProxyCommand string
	IdentityFile string
	Password     string
}

type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusProbing
	StatusReachable
	StatusUnreachable
)

func (k StatusKind) String() string {
	switch k {
	case StatusProbing:
		return "probing"
	case StatusReachable:
		return "reachable"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Status is the last known reachability of a profile. It is never persisted.
type Status struct {
	Kind    StatusKind
	Latency time.Duration
	Reason  string
}

func Probing() Status { return Status{Kind: StatusProbing} }

func Reachable(latency time.Duration) Status {
	return Status{Kind: StatusReachable, Latency: latency}
}

func Unreachable(reason string) Status {
	return Status{Kind: StatusUnreachable, Reason: reason}
}

// Settled reports whether the status is the outcome of a finished probe.
func (s Status) Settled() bool {
	return s.Kind == StatusReachable || s.Kind == StatusUnreachable
}

func (s Status) String() string {
	switch s.Kind {
	case StatusReachable:
		return fmt.Sprintf("%dms", s.Latency.Milliseconds())
	case StatusUnreachable:
		return s.Reason
	default:
		return s.Kind.String()
	}
}
