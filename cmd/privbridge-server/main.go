// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// privbridge-server is the privileged half of privbridge. The
// controller runs it through sudo:
//
//	sudo privbridge-server <endpoint-path> <invoking-uid>
//
// It binds the endpoint, hands the socket to the invoking user, and
// serves the runtime and fs objects until SIGTERM or SIGINT, removing
// the socket on the way out. It is not meant to be run by hand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/privbridge/cmd/privbridge/cli"
	"github.com/bureau-foundation/privbridge/lib/privserver"
	"github.com/bureau-foundation/privbridge/lib/process"
	"github.com/bureau-foundation/privbridge/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var verbose, showVersion bool
	flagSet := pflag.NewFlagSet("privbridge-server", pflag.ContinueOnError)
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every call at debug level")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: privbridge-server [flags] <endpoint-path> <invoking-uid>\n\n%s", flagSet.FlagUsages())
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("privbridge-server")
		return nil
	}

	logger := cli.NewCommandLogger(verbose).With("component", "privbridge-server")
	return privserver.Run(flagSet.Args(), logger)
}
