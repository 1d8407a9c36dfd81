// pv-sim serves simulated beamline channels over the PV gateway protocol.
//
// Usage:
//
//	pv-sim [--config imprint.cfg] [--motor PV ...] [--addr :7130]
//
// With --config the motors, attenuator and linac channels named by the
// scan configuration are simulated. Extra motors can be added with
// repeated --motor flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"imprint-scan/pkg/channel"
	"imprint-scan/pkg/config"
	"imprint-scan/pkg/gateway"
	"imprint-scan/pkg/log"
)

func main() {
	var (
		addr     string
		cfgPath  string
		motors   []string
		settle   time.Duration
		logLevel string
	)
	cmd := &cobra.Command{
		Use:          "pv-sim",
		Short:        "Serve simulated motor, attenuator and linac channels",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New("pv-sim")
			log.ConfigureFromEnv(logger)
			if logLevel != "" {
				logger.SetLevel(log.ParseLevel(logLevel))
			}
			log.SetDefaultLogger(logger)

			var layout gateway.Layout
			if cfgPath != "" {
				c, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				sc, err := config.DecodeScan(c)
				if err != nil {
					return err
				}
				layout = gateway.LayoutFromScan(sc, settle)
			}
			layout.Motors = append(layout.Motors, motors...)
			layout.Settle = settle
			if len(layout.Motors) == 0 && layout.Setpoint == "" && layout.BurstCount == "" {
				return fmt.Errorf("nothing to simulate: pass --config or --motor")
			}

			store := channel.NewMemory()
			layout.Install(store)
			logger.Info("simulating %d channels", len(store.Names()))

			srv := gateway.New(gateway.Config{Addr: addr, Store: store, Logger: logger.WithPrefix("gateway")})
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}
			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(ctx)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", ":7130", "listen address")
	flags.StringVarP(&cfgPath, "config", "c", "", "scan configuration naming the channels to simulate")
	flags.StringArrayVar(&motors, "motor", nil, "additional motor PV (repeatable)")
	flags.DurationVar(&settle, "settle", 50*time.Millisecond, "delay before simulated readbacks follow a put")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
