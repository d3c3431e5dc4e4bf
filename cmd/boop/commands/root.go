package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Connicpu/boop/internal/config"
	"github.com/Connicpu/boop/internal/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var (
	ErrNameRequired = errors.New("a name is required")
	ErrConflicting  = errors.New("a name cannot be combined with a mode flag")
)

type modeKind int

const (
	modeUsage modeKind = iota
	modeBoopName
	modeBoopEveryone
	modeDaemon
	modeInstall
	modePeers
)

type mode struct {
	kind modeKind
	name string
}

type options struct {
	everyone   bool
	daemon     string
	install    string
	peers      bool
	configPath string
}

// actions performs each mode; tests swap them out.
type actions struct {
	boop    func(ctx context.Context, env *environment, recipient string, everyone bool) error
	daemon  func(env *environment, name string) error
	install func(ctx context.Context, env *environment, name string) error
	peers   func(ctx context.Context, env *environment) error
}

// environment is what every mode receives after bootstrap.
type environment struct {
	cfg        config.Config
	configPath string
	out        io.Writer
}

// Execute runs the boop command line.
func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultActions(), os.Stdout)
}

func newRootCommand(acts actions, out io.Writer) *cobra.Command {
	var opts options
	env := &environment{out: out}

	cmd := &cobra.Command{
		Use:   "boop [name]",
		Short: "Boop your friends over the local network",
		Long: `boop sends a friendly notification to a named machine, or to everyone,
on the local network. Each machine runs a daemon listening under a name.`,
		Example: `  boop Rex              broadcast a boop packet to Rex
  boop --everyone       boop everyone (don't be annoying tho!)
  boop --daemon Rex     start the boop daemon, listening as Rex
  boop --install Rex    add the boop daemon to startup as Rex
  boop --peers          list daemons advertising over mDNS`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap(env, opts.configPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := resolveMode(cmd, opts, args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch m.kind {
			case modeBoopName:
				return acts.boop(ctx, env, m.name, false)
			case modeBoopEveryone:
				return acts.boop(ctx, env, "", true)
			case modeDaemon:
				return acts.daemon(env, m.name)
			case modeInstall:
				return acts.install(ctx, env, m.name)
			case modePeers:
				return acts.peers(ctx, env)
			default:
				return cmd.Help()
			}
		},
	}
	cmd.SetOut(out)

	flags := cmd.Flags()
	flags.BoolVar(&opts.everyone, "everyone", false, "boop everyone on the network")
	flags.StringVar(&opts.daemon, "daemon", "", "start the boop daemon, listening as `name`")
	flags.StringVar(&opts.install, "install", "", "add the boop daemon to startup as `name`")
	flags.BoolVar(&opts.peers, "peers", false, "list daemons advertising over mDNS")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: <user config dir>/boop/boop.toml, or $"+config.EnvConfigPath+")")
	cmd.MarkFlagsMutuallyExclusive("everyone", "daemon", "install", "peers")
	return cmd
}

// bootstrap loads .env, configures logging and reads the config file.
func bootstrap(env *environment, configPath string) error {
	envErr := godotenv.Load()
	logging.ConfigureRuntime()
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn().Err(envErr).Msg("boop: .env not loaded")
	}

	cfg, path, err := config.LoadResolved(configPath)
	if err != nil {
		return err
	}
	env.cfg = cfg
	env.configPath = path
	return nil
}

func resolveMode(cmd *cobra.Command, opts options, args []string) (mode, error) {
	flags := cmd.Flags()
	modeFlag := flags.Changed("everyone") || flags.Changed("daemon") || flags.Changed("install") || flags.Changed("peers")
	if len(args) > 0 && modeFlag {
		return mode{}, ErrConflicting
	}

	switch {
	case flags.Changed("daemon"):
		if opts.daemon == "" {
			return mode{}, fmt.Errorf("--daemon: %w", ErrNameRequired)
		}
		return mode{kind: modeDaemon, name: opts.daemon}, nil
	case flags.Changed("install"):
		if opts.install == "" {
			return mode{}, fmt.Errorf("--install: %w", ErrNameRequired)
		}
		return mode{kind: modeInstall, name: opts.install}, nil
	case opts.everyone:
		return mode{kind: modeBoopEveryone}, nil
	case opts.peers:
		return mode{kind: modePeers}, nil
	case len(args) == 1:
		return mode{kind: modeBoopName, name: args[0]}, nil
	default:
		return mode{kind: modeUsage}, nil
	}
}
