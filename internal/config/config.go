package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Profile is one server connection profile. Persistence format is owned
// here; the engine only consumes the typed values.
type Profile struct {
	Network  string `yaml:"network" toml:"network"`
	Server   string `yaml:"server" toml:"server"`
	Port     int    `yaml:"port" toml:"port"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	Insecure bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`

	Nick       string   `yaml:"nick" toml:"nick"`
	Alternates []string `yaml:"alternates" toml:"alternates"`
	// NickSuffix is appended to the last exhausted candidate on nick
	// collision during registration.
	NickSuffix string `yaml:"nick_suffix" toml:"nick_suffix"`
	Username   string `yaml:"username" toml:"username"`
	Realname   string `yaml:"realname" toml:"realname"`
	ServerPass string `yaml:"server_pass" toml:"server_pass"`

	AutoJoin []string `yaml:"autojoin" toml:"autojoin"`

	SASL SASL `yaml:"sasl" toml:"sasl"`

	Reconnect Reconnect `yaml:"reconnect" toml:"reconnect"`
	Timeouts  Timeouts  `yaml:"timeouts" toml:"timeouts"`
}

// SASL selects the authentication mechanism used during registration.
// An empty Mechanism disables SASL.
type SASL struct {
	Mechanism string `yaml:"mechanism" toml:"mechanism"` // PLAIN, EXTERNAL, SCRAM-SHA-256
	Username  string `yaml:"username" toml:"username"`
	Password  string `yaml:"password" toml:"password"`
	Authzid   string `yaml:"authzid" toml:"authzid"`
}

// Reconnect is the backoff policy applied after a failed or lost
// connection.
type Reconnect struct {
	Enabled      bool     `yaml:"enabled" toml:"enabled"`
	InitialDelay Duration `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay" toml:"max_delay"`
	Jitter       float64  `yaml:"jitter" toml:"jitter"`
	// MaxAttempts of 0 means unbounded.
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts"`
}

// Timeouts bounds every suspending operation explicitly rather than relying
// on OS defaults.
type Timeouts struct {
	Resolve   Duration `yaml:"resolve" toml:"resolve"`
	Connect   Duration `yaml:"connect" toml:"connect"`
	Handshake Duration `yaml:"handshake" toml:"handshake"`
	// PingIdle is the idle window after which a keepalive PING goes out;
	// PingGrace is how long the matching PONG may take before the
	// connection is declared dead.
	PingIdle  Duration `yaml:"ping_idle" toml:"ping_idle"`
	PingGrace Duration `yaml:"ping_grace" toml:"ping_grace"`
}

// Load reads and parses a profile file. The format is chosen by extension:
// .toml uses TOML, everything else YAML.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var p Profile
	if isTOML(path) {
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	p.ApplyDefaults()
	return &p, nil
}

// Save writes the profile back to disk in the format the extension names.
func (p *Profile) Save(path string) error {
	var data []byte
	var err error
	if isTOML(path) {
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(p)
		data = buf.Bytes()
	} else {
		data, err = yaml.Marshal(p)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyDefaults fills in every zero field that has a sensible default.
func (p *Profile) ApplyDefaults() {
	if p.Port == 0 {
		if p.TLS {
			p.Port = 6697
		} else {
			p.Port = 6667
		}
	}
	if p.Network == "" {
		p.Network = p.Server
	}
	if p.Username == "" {
		p.Username = p.Nick
	}
	if p.Realname == "" {
		p.Realname = p.Nick
	}
	if p.NickSuffix == "" {
		p.NickSuffix = "_"
	}
	if p.Reconnect.InitialDelay == 0 {
		p.Reconnect.InitialDelay = Duration(2 * time.Second)
	}
	if p.Reconnect.MaxDelay == 0 {
		p.Reconnect.MaxDelay = Duration(5 * time.Minute)
	}
	if p.Reconnect.Jitter == 0 {
		p.Reconnect.Jitter = 0.25
	}
	// Jitter above 1 would let a jittered delay overtake the next step's
	// base, so reconnect delays would no longer be non-decreasing.
	if p.Reconnect.Jitter < 0 {
		p.Reconnect.Jitter = 0
	} else if p.Reconnect.Jitter > 1 {
		p.Reconnect.Jitter = 1
	}
	if p.Timeouts.Resolve == 0 {
		p.Timeouts.Resolve = Duration(15 * time.Second)
	}
	if p.Timeouts.Connect == 0 {
		p.Timeouts.Connect = Duration(30 * time.Second)
	}
	if p.Timeouts.Handshake == 0 {
		p.Timeouts.Handshake = Duration(30 * time.Second)
	}
	if p.Timeouts.PingIdle == 0 {
		p.Timeouts.PingIdle = Duration(3 * time.Minute)
	}
	if p.Timeouts.PingGrace == 0 {
		p.Timeouts.PingGrace = Duration(time.Minute)
	}
}

// Addr returns the host:port dial target.
func (p *Profile) Addr() string {
	return fmt.Sprintf("%s:%d", p.Server, p.Port)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
