// imprint runs multi-axis imprint scans.
//
// Usage:
//
//	imprint <command> --config imprint.cfg [options]
//
// Commands:
//
//	run     walk the mesh, moving motors and driving the attenuator and linac
//	test    print every grid position without touching hardware
//	check   validate the configuration
//	mesh    print the built mesh
//
// Examples:
//
//	# Validate a configuration
//	imprint check --config imprintStandard.cfg
//
//	# Run against the in-process simulator and export the step log
//	imprint run --config imprintStandard.cfg --simulate --output json
//
//	# Run through a PV gateway with a 30s wait timeout
//	imprint run --config imprintStandard.cfg --gateway ws://localhost:7130/websocket --wait-timeout 30s
//
//	# Check for misspelled options, failing on any
//	imprint check --config imprintStandard.cfg --strict
//
//	# Override a single option without editing the file
//	imprint run --config imprintStandard.cfg --simulate --set Scan.wait_timeout=5s
//
// Every flag except --set can also be set through IMPRINT_<FLAG>
// environment variables, e.g. IMPRINT_WAIT_TIMEOUT=30s.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/log"
	"imprint-scan/pkg/scan"
)

func main() {
	cobra.OnInitialize(initConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func initConfig() {
	viper.SetEnvPrefix("IMPRINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imprint",
		Short:         "Multi-axis imprint scan driver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addPersistentFlags(root)
	root.AddCommand(runCmd(), testCmd(), checkCmd(), meshCmd())
	return root
}

func addPersistentFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringP("config", "c", scan.DefaultPath, "scan configuration file (INI or YAML)")
	flags.BoolP("verbose", "v", false, "print a status line for every step")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("logfile", "", "also log to this file, rotated by size")
	flags.StringP("output", "o", "table", "output format: table, json or yaml")
	flags.StringArray("set", nil, "override a configuration option, e.g. --set Scan.verbose=true (repeatable)")
	for _, name := range []string{"config", "verbose", "log-level", "log-format", "logfile", "output"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

// exitCode maps preflight failures to 2 and everything else to 1.
func exitCode(err error) int {
	if hosterrors.IsPreflight(err) {
		return 2
	}
	return 1
}

// setupLogging builds the process logger from flags and environment.
// The returned function closes the log file, if any.
func setupLogging() (*log.Logger, func(), error) {
	logger := log.New("imprint")
	closer := func() {}
	if path := viper.GetString("logfile"); path != "" {
		l, w, err := log.NewConsoleAndFileLogger("imprint", log.RotationConfig{Filename: path, Compress: true})
		if err != nil {
			return nil, nil, err
		}
		logger = l
		closer = func() { w.Close() }
	}
	log.ConfigureFromEnv(logger)
	if lvl := viper.GetString("log-level"); lvl != "" {
		logger.SetLevel(log.ParseLevel(lvl))
	}
	if f := viper.GetString("log-format"); f != "" {
		logger.SetFormat(log.ParseFormat(f))
	}
	log.SetDefaultLogger(logger)
	return logger, closer, nil
}
