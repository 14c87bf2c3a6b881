package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	fscli "github.com/Paranoid-AF/fscli"
)

const defaultProfile = "default"

// options holds the raw flag values. Only flags the user actually set
// override the profile.
type options struct {
	configPath   string
	listProfiles bool

	host        string
	port        int
	password    string
	user        string
	debug       int
	color       fscli.ColorMode
	execute     []string
	historyFile string
	timeout     int
	retry       bool
	reconnect   bool
	events      bool
	logLevel    fscli.LogLevel
	quiet       bool
}

func defaultOptions() *options {
	return &options{color: fscli.ColorLine, logLevel: fscli.LogDebug}
}

func newRootCmd() *cobra.Command {
	o := defaultOptions()
	cmd := &cobra.Command{
		Use:           "fs_cli [PROFILE]",
		Short:         "Interactive FreeSWITCH CLI client",
		Long:          "fs_cli connects to FreeSWITCH's event socket, runs API commands and shows log output and channel events as they happen.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, o)
		},
	}
	bindFlags(cmd.Flags(), o)
	return cmd
}

func bindFlags(f *pflag.FlagSet, o *options) {
	f.StringVarP(&o.host, "host", "H", "", "FreeSWITCH hostname or IP address")
	f.IntVarP(&o.port, "port", "P", 0, "FreeSWITCH ESL port")
	f.StringVarP(&o.password, "password", "p", "", "ESL password")
	f.StringVarP(&o.user, "user", "u", "", "username for authentication (optional)")
	f.IntVarP(&o.debug, "debug", "d", 0, "client debug level (0-7, higher = more verbose)")
	f.Var(&o.color, "color", "color mode for output (never, tag, line)")
	f.StringArrayVarP(&o.execute, "execute", "x", nil, "execute a command and exit (repeatable)")
	f.StringVar(&o.historyFile, "history-file", "", "history file path")
	f.IntVarP(&o.timeout, "connect-timeout", "T", 0, "connection timeout in milliseconds")
	f.BoolVarP(&o.retry, "retry", "r", false, "retry the initial connection until it succeeds")
	f.BoolVarP(&o.reconnect, "reconnect", "R", false, "reconnect when the connection is lost")
	f.BoolVar(&o.events, "events", false, "subscribe to channel events on startup")
	f.VarP(&o.logLevel, "log-level", "l", "FreeSWITCH log level to receive")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "do not enable log output on startup")
	f.StringVar(&o.configPath, "config", "", "configuration file (created from the built-in default when missing)")
	f.BoolVar(&o.listProfiles, "list-profiles", false, "list the profiles in the configuration file")
}

// loadConfig resolves the profile named in args and applies flag overrides.
// It returns nil after handling --list-profiles.
func loadConfig(cmd *cobra.Command, args []string, o *options) (*fscli.AppConfig, error) {
	fileCfg, _, err := fscli.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.listProfiles {
		listProfiles(cmd.OutOrStdout(), fileCfg)
		return nil, nil
	}

	name := defaultProfile
	if len(args) == 1 {
		name = args[0]
	}
	profile := selectProfile(cmd.ErrOrStderr(), fileCfg, name)

	cfg, err := profile.Resolve()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	if err := applyFlags(cmd.Flags(), o, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// selectProfile falls back to the default profile, with a warning, when name
// does not exist.
func selectProfile(w io.Writer, c *fscli.FileConfig, name string) fscli.Profile {
	p, err := c.Profile(name)
	if err == nil {
		return p
	}
	fmt.Fprintf(w, "Warning: %v, using default profile\n", err)
	p, _ = c.Profile(defaultProfile)
	return p
}

func listProfiles(w io.Writer, c *fscli.FileConfig) {
	fmt.Fprintln(w, "Available profiles:")
	for _, name := range c.ProfileNames() {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

// applyFlags overrides cfg with every flag set on the command line. Flags
// take precedence over environment variables and the profile.
func applyFlags(fs *pflag.FlagSet, o *options, cfg *fscli.AppConfig) error {
	set := func(name string) bool { return fs.Changed(name) }

	if set("host") {
		cfg.Host = o.host
	}
	if set("port") {
		cfg.Port = o.port
	}
	if set("password") {
		cfg.Password = o.password
	}
	if set("user") {
		cfg.User = o.user
	}
	if set("debug") {
		level, err := fscli.ParseDebugLevel(fmt.Sprint(o.debug))
		if err != nil {
			return err
		}
		cfg.Debug = level
	}
	if set("color") {
		cfg.Color = o.color
	}
	if set("history-file") {
		cfg.HistoryFile = o.historyFile
	}
	if set("connect-timeout") {
		timeout, err := fscli.ParseTimeout(o.timeout)
		if err != nil {
			return fmt.Errorf("--connect-timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	if set("retry") {
		cfg.Retry = o.retry
	}
	if set("reconnect") {
		cfg.Reconnect = o.reconnect
	}
	if set("events") {
		cfg.Events = o.events
	}
	if set("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if set("quiet") {
		cfg.Quiet = o.quiet
	}
	cfg.Execute = o.execute
	return nil
}
