package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"imprint-scan/pkg/config"
	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/log"
	"imprint-scan/pkg/metrics"
	"imprint-scan/pkg/report"
	"imprint-scan/pkg/scan"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(viper.GetString("output"))
			if err != nil {
				return err
			}
			return withLogger(func(logger *log.Logger) error {
				return runScan(cmd, logger, format)
			})
		},
	}
	flags := cmd.Flags()
	flags.Bool("simulate", false, "run against in-process simulated hardware")
	flags.Duration("settle", 10*time.Millisecond, "simulated hardware settle time")
	flags.String("gateway", "", "PV gateway websocket URL")
	flags.Duration("wait-timeout", 0, "bound every hardware wait (0 uses the configured value)")
	flags.String("metrics-file", "", "write Prometheus metrics to this file after the run")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	for _, name := range []string{"simulate", "settle", "gateway", "wait-timeout", "metrics-file", "metrics-addr"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	return cmd
}

// loadConfig reads the configured file and applies --set overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	overrides, _ := cmd.Flags().GetStringArray("set")
	for _, expr := range overrides {
		if err := c.Override(expr); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func runScan(cmd *cobra.Command, logger *log.Logger, format report.Format) error {
	ctx := cmd.Context()
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	hw, closeHW, err := connectHardware(ctx, c, logger)
	if err != nil {
		return err
	}
	defer closeHW()

	sm := metrics.NewScanMetrics()
	if addr := viper.GetString("metrics-addr"); addr != "" {
		srv := metrics.NewServer(sm, addr)
		errCh := srv.StartAsync()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
			if err := <-errCh; err != nil {
				logger.WithError(err).Warn("metrics server failed")
			}
		}()
	}

	im, err := scan.New(ctx, scan.Options{
		Config:      c,
		Hardware:    hw,
		Verbose:     viper.GetBool("verbose"),
		WaitTimeout: viper.GetDuration("wait-timeout"),
		Logger:      logger,
		Metrics:     sm,
		Status:      os.Stdout,
	})
	if err != nil {
		return err
	}

	runErr := im.Run(ctx)
	if path := viper.GetString("metrics-file"); path != "" {
		if err := sm.WriteTextfile(path); err != nil {
			logger.WithError(err).Warn("could not write metrics")
		}
	}
	records := im.Records()
	if len(records) > 0 {
		exp := report.Export{
			RunID:   im.RunID(),
			Config:  im.Path(),
			Axes:    im.Sequences().Names,
			Steps:   im.Sequences().Steps,
			Summary: report.Summarize(records),
			Records: records,
		}
		if err := report.Write(os.Stdout, format, exp); err != nil {
			return err
		}
	}
	return runErr
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Print every grid position without moving anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogger(func(logger *log.Logger) error {
				c, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				im, err := scan.New(cmd.Context(), scan.Options{
					Config: c,
					Logger: logger,
					Status: os.Stdout,
				})
				if err != nil {
					return err
				}
				_, err = im.Test(cmd.Context())
				return err
			})
		},
	}
}

func checkCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogger(func(logger *log.Logger) error {
				c, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				im, err := scan.New(cmd.Context(), scan.Options{Config: c, Logger: logger})
				if err != nil {
					return err
				}
				// Options the decoder never read are usually typos.
				if err := c.CheckUnused(); err != nil {
					if strict {
						return hosterrors.ConfigFormatError("", "", im.Path(), err)
					}
					logger.Warn("%v", err)
				}
				seqs := im.Sequences()
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK, %d axes over mesh %v (%d cells)\n",
					im.Path(), len(seqs.Axes), seqs.Steps, seqs.Size())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the configuration has unused sections or options")
	return cmd
}

func meshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mesh",
		Short: "Print the built mesh",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(viper.GetString("output"))
			if err != nil {
				return err
			}
			return withLogger(func(logger *log.Logger) error {
				c, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				im, err := scan.New(cmd.Context(), scan.Options{Config: c, Logger: logger})
				if err != nil {
					return err
				}
				if format == report.FormatTable {
					report.MeshTable(os.Stdout, im.Sequences())
					return nil
				}
				return report.WriteMesh(os.Stdout, format, im.Sequences())
			})
		},
	}
}

func withLogger(fn func(*log.Logger) error) error {
	logger, closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()
	return fn(logger)
}
