package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"imprint-scan/pkg/channel"
	"imprint-scan/pkg/config"
	"imprint-scan/pkg/gateway"
	"imprint-scan/pkg/log"
	"imprint-scan/pkg/motor"
	"imprint-scan/pkg/scan"
)

// connectHardware picks the channel backend from the flags: a PV gateway,
// or an in-process store simulating every channel the configuration uses.
func connectHardware(ctx context.Context, c *config.Config, logger *log.Logger) (scan.Hardware, func(), error) {
	if url := viper.GetString("gateway"); url != "" {
		client, err := channel.Dial(ctx, url, channel.WSOptions{Logger: logger.WithPrefix("channel")})
		if err != nil {
			return scan.Hardware{}, nil, err
		}
		logger.Info("connected to gateway %s", url)
		return scan.Hardware{Motors: motor.PVFactory(client), Channel: client}, func() { client.Close() }, nil
	}

	if viper.GetBool("simulate") {
		sc, err := config.DecodeScan(c)
		if err != nil {
			return scan.Hardware{}, nil, err
		}
		store := channel.NewMemory()
		layout := gateway.LayoutFromScan(sc, viper.GetDuration("settle"))
		layout.Install(store)
		logger.WithField("motors", len(layout.Motors)).Info("using simulated hardware")
		return scan.Hardware{Motors: motor.PVFactory(store), Channel: store}, func() {}, nil
	}

	return scan.Hardware{}, nil, fmt.Errorf("no hardware selected: pass --simulate or --gateway")
}
