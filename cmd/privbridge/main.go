// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// privbridge runs one privileged operation through a sudo-launched
// privbridge-server and tears the server down afterwards.
//
//	privbridge [flags] <command> [args...]
//
// Configuration comes from --config, else PRIVBRIDGE_CONFIG, else the
// built-in defaults (sudo, privbridge-server on PATH, endpoint in
// $TMPDIR). sudo prompts on the terminal as usual.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/privbridge/bridge"
	"github.com/bureau-foundation/privbridge/cmd/privbridge/cli"
	"github.com/bureau-foundation/privbridge/lib/config"
	"github.com/bureau-foundation/privbridge/lib/process"
	"github.com/bureau-foundation/privbridge/lib/rpc"
	"github.com/bureau-foundation/privbridge/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		process.Fatal(err)
	}
}

// globalFlags are accepted before the command name.
type globalFlags struct {
	configPath   string
	timeout      time.Duration
	checkModules bool
	verbose      bool
	showVersion  bool
	color        string
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var flags globalFlags
	flagSet := pflag.NewFlagSet("privbridge", pflag.ContinueOnError)
	flagSet.StringVarP(&flags.configPath, "config", "c", "", "config file (default: $PRIVBRIDGE_CONFIG, else built-in defaults)")
	flagSet.DurationVar(&flags.timeout, "timeout", 0, "how long to wait for the server to start (overrides the config)")
	flagSet.BoolVar(&flags.checkModules, "check-modules", false, "fail if the server was built from different module versions")
	flagSet.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	flagSet.BoolVar(&flags.showVersion, "version", false, "print version and exit")
	flagSet.StringVar(&flags.color, "color", string(colorAuto), "highlight JSON output: auto, always, or never")
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() { printUsage(os.Stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flags.showVersion {
		version.Print("privbridge")
		return nil
	}

	mode, err := parseColorMode(flags.color)
	if err != nil {
		return err
	}
	out := newOutput(stdout, mode)

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(os.Stderr, flagSet)
		return errors.New("no command given")
	}
	command, ok := lookupCommand(rest[0])
	if !ok {
		return fmt.Errorf("unknown command %q (see privbridge --help)", rest[0])
	}
	commandArgs := rest[1:]
	if err := command.checkArgs(commandArgs); err != nil {
		return err
	}

	// Commands that never reach the server.
	if command.local != nil {
		return command.local(commandArgs, out)
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.timeout > 0 {
		cfg.Startup.Timeout = config.Duration(flags.timeout)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cli.NewCommandLogger(flags.verbose).With("command", command.name)
	options := bridge.OptionsFromConfig(cfg)
	options.Logger = logger
	if flags.checkModules {
		options.Features = bridge.ModuleCheck{Logger: logger, Strict: true}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = bridge.Run(ctx, options, func(ctx context.Context, b *bridge.Bridge) error {
		return command.remote(ctx, b, commandArgs, stdin, out)
	})
	var transport *rpc.TransportError
	if errors.As(err, &transport) && transport.PeerGone() {
		return fmt.Errorf("privileged server went away: %w", err)
	}
	return err
}

// loadConfig picks the explicit file, then PRIVBRIDGE_CONFIG, then
// the defaults.
func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case os.Getenv(config.EnvironmentVariable) != "":
		return config.Load()
	default:
		return config.Default(), nil
	}
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, `privbridge - run privileged operations through a sudo-launched server

USAGE
    privbridge [flags] <command> [args...]

COMMANDS
`)
	for _, command := range commands {
		fmt.Fprintf(w, "    %-32s %s\n", command.name+" "+command.usage, command.summary)
	}
	fmt.Fprintf(w, "\nFLAGS\n%s", flagSet.FlagUsages())
}
