package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/WendelHime/goswarm/internal/shared/models"
	"gopkg.in/yaml.v3"
)

const DefaultTrackerPort = 8888

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type PeerConfig struct {
	// Tracker is host:port of the tracker. It may be empty when Discover is set.
	Tracker       string `yaml:"tracker"`
	ListenPort    int    `yaml:"listen_port"`
	DataDir       string `yaml:"data_dir"`
	MetaPath      string `yaml:"meta"`
	AdvertiseHost string `yaml:"advertise_host"`
	Discover      bool   `yaml:"discover"`
	Progress      bool   `yaml:"progress"`

	UpdateInterval      time.Duration `yaml:"update_interval"`
	RefreshDelay        time.Duration `yaml:"refresh_delay"`
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
	FetchInterval       time.Duration `yaml:"fetch_interval"`
	ReconstructDelay    time.Duration `yaml:"reconstruct_delay"`
	ReconstructInterval time.Duration `yaml:"reconstruct_interval"`
	NetworkTimeout      time.Duration `yaml:"network_timeout"`
	JoinMaxElapsed      time.Duration `yaml:"join_max_elapsed"`
	MaxConnections      int64         `yaml:"max_connections"`

	Log LogConfig `yaml:"log"`
}

type TrackerConfig struct {
	ListenPort int       `yaml:"listen_port"`
	StatusAddr string    `yaml:"status_addr"`
	MDNS       bool      `yaml:"mdns"`
	Log        LogConfig `yaml:"log"`
}

func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		Progress:            true,
		UpdateInterval:      10 * time.Second,
		RefreshDelay:        3 * time.Second,
		RefreshInterval:     10 * time.Second,
		FetchInterval:       11 * time.Second,
		ReconstructDelay:    5 * time.Second,
		ReconstructInterval: 10 * time.Second,
		NetworkTimeout:      5 * time.Second,
		JoinMaxElapsed:      time.Minute,
		MaxConnections:      64,
		Log:                 LogConfig{Level: "info"},
	}
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		ListenPort: DefaultTrackerPort,
		Log:        LogConfig{Level: "info"},
	}
}

// LoadFile decodes a YAML file into out. Fields absent from the file keep
// their current value; unknown fields are an error.
func LoadFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c PeerConfig) Validate() error {
	var errs []error
	if c.Tracker == "" && !c.Discover {
		errs = append(errs, errors.New("tracker address is required"))
	}
	if !models.ValidPort(c.ListenPort) {
		errs = append(errs, fmt.Errorf("invalid listen port %d", c.ListenPort))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, errors.New("max_connections must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"update_interval":      c.UpdateInterval,
		"refresh_interval":     c.RefreshInterval,
		"fetch_interval":       c.FetchInterval,
		"reconstruct_interval": c.ReconstructInterval,
		"network_timeout":      c.NetworkTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.RefreshDelay < 0 || c.ReconstructDelay < 0 || c.JoinMaxElapsed < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	return errors.Join(errs...)
}

func (c TrackerConfig) Validate() error {
	if !models.ValidPort(c.ListenPort) {
		return fmt.Errorf("invalid listen port %d", c.ListenPort)
	}
	return nil
}

// WithDefaultPort appends the tracker's default port to a bare host.
func WithDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(DefaultTrackerPort))
}
