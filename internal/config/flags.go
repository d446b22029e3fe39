package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

// ParsePeerArgs builds a peer configuration from defaults, an optional
// --config file and command-line flags, in increasing precedence.
// Positional arguments are <tracker-host[:port]> <listen-port>; the tracker
// may be omitted with --discover.
func ParsePeerArgs(args []string) (PeerConfig, error) {
	cfg := DefaultPeerConfig()
	if err := loadConfigFlag(args, &cfg); err != nil {
		return cfg, err
	}

	fs := pflag.NewFlagSet("peer", pflag.ContinueOnError)
	fs.String("config", "", "YAML configuration file")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "piece directory (default peer_data_<port>)")
	fs.StringVar(&cfg.MetaPath, "meta", cfg.MetaPath, "swarm.meta file naming the reconstructed output")
	fs.StringVar(&cfg.AdvertiseHost, "advertise-host", cfg.AdvertiseHost, "host announced to the tracker")
	fs.BoolVar(&cfg.Discover, "discover", cfg.Discover, "find the tracker with mDNS")
	fs.BoolVar(&cfg.Progress, "progress", cfg.Progress, "render a progress bar")
	fs.DurationVar(&cfg.UpdateInterval, "update-interval", cfg.UpdateInterval, "interval between UPDATE messages")
	fs.DurationVar(&cfg.RefreshDelay, "refresh-delay", cfg.RefreshDelay, "delay before the first GETPEERS")
	fs.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "interval between GETPEERS requests")
	fs.DurationVar(&cfg.FetchInterval, "fetch-interval", cfg.FetchInterval, "pause between piece fetches")
	fs.DurationVar(&cfg.ReconstructDelay, "reconstruct-delay", cfg.ReconstructDelay, "delay before the first reconstruction check")
	fs.DurationVar(&cfg.ReconstructInterval, "reconstruct-interval", cfg.ReconstructInterval, "interval between reconstruction checks")
	fs.DurationVar(&cfg.NetworkTimeout, "timeout", cfg.NetworkTimeout, "timeout of every network call")
	fs.DurationVar(&cfg.JoinMaxElapsed, "join-max-elapsed", cfg.JoinMaxElapsed, "give up joining after this long (0 retries forever)")
	fs.Int64Var(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "concurrent transfer connections served")
	bindLogFlags(fs, &cfg.Log)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	rest := fs.Args()
	switch {
	case len(rest) == 2:
		cfg.Tracker = WithDefaultPort(rest[0])
		rest = rest[1:]
	case len(rest) == 1 && (cfg.Discover || cfg.Tracker != ""):
	default:
		return cfg, errors.New("usage: peer [flags] <tracker-host[:port]> <listen-port>")
	}
	port, err := strconv.Atoi(rest[0])
	if err != nil {
		return cfg, fmt.Errorf("invalid listen port %q", rest[0])
	}
	cfg.ListenPort = port
	if cfg.Tracker != "" {
		cfg.Tracker = WithDefaultPort(cfg.Tracker)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "peer_data_" + strconv.Itoa(port)
	}
	return cfg, cfg.Validate()
}

// ParseTrackerArgs builds a tracker configuration. The only positional
// argument is the optional UDP listen port.
func ParseTrackerArgs(args []string) (TrackerConfig, error) {
	cfg := DefaultTrackerConfig()
	if err := loadConfigFlag(args, &cfg); err != nil {
		return cfg, err
	}

	fs := pflag.NewFlagSet("tracker", pflag.ContinueOnError)
	fs.String("config", "", "YAML configuration file")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "serve the registry as JSON on this address")
	fs.BoolVar(&cfg.MDNS, "mdns", cfg.MDNS, "publish the tracker with mDNS")
	bindLogFlags(fs, &cfg.Log)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		port, err := strconv.Atoi(rest[0])
		if err != nil {
			return cfg, fmt.Errorf("invalid listen port %q", rest[0])
		}
		cfg.ListenPort = port
	default:
		return cfg, errors.New("usage: tracker [flags] [port]")
	}
	return cfg, cfg.Validate()
}

func bindLogFlags(fs *pflag.FlagSet, cfg *LogConfig) {
	fs.StringVar(&cfg.Level, "log-level", cfg.Level, "debug, info, warn or error")
	fs.BoolVar(&cfg.JSON, "log-json", cfg.JSON, "log as JSON")
}

// loadConfigFlag looks for --config ahead of the real parse so that file
// values can serve as flag defaults.
func loadConfigFlag(args []string, out any) error {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	path := fs.String("config", "", "")
	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return err
	}
	if *path == "" {
		return nil
	}
	return LoadFile(*path, out)
}
