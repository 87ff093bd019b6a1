// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	gostlink "github.com/bbnote/gostlink-swo"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	logger *logrus.Logger

	verbosity     int
	flagSerial    string
	flagSpeed     uint32
	flagInterface string

	openedProbe *gostlink.StLink
)

// flags that may be preset from the environment or a .env file
var envDefaults = map[string]string{
	"serial": "SWVIEWER_SERIAL",
	"speed":  "SWVIEWER_SPEED",
	"cpu-hz": "SWVIEWER_CPU_HZ",
	"swo-hz": "SWVIEWER_SWO_HZ",
}

var rootCmd = &cobra.Command{
	Use:   "swViewer",
	Short: "SWO trace viewer for ST-Link probes",
	Long: `Connects to an ST-Link probe, discovers the CoreSight components of the
attached Cortex-M target and prints the ITM/DWT trace packets it emits.

Examples:
  swViewer list                                 # show attached probes
  swViewer info -s 066DFF515051717867191632     # probe and target details
  swViewer capture --address 0x20000004 -v      # trace a variable`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setUp,
}

// Execute runs the root command and releases the probe on every exit path.
func Execute() {
	initLogger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not load .env file: ", err)
	}

	atexit.Register(tearDown)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v debug, -vv trace)")
	rootCmd.PersistentFlags().StringVarP(&flagSerial, "serial", "s", "", "serial number of the probe to use")
	rootCmd.PersistentFlags().Uint32Var(&flagSpeed, "speed", 1800, "debug interface speed in kHz")
	rootCmd.PersistentFlags().StringVar(&flagInterface, "interface", "swd", "debug interface (swd, jtag)")
}

func initLogger() {
	formatter := &prefixed.TextFormatter{
		DisableColors:   false,
		TimestampFormat: "15:04:05.000",
		FullTimestamp:   true,
		ForceFormatting: true,
	}

	logger = logrus.New()

	logger.SetFormatter(formatter)
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
}

func setUp(cmd *cobra.Command, args []string) error {
	switch {
	case verbosity >= 2:
		logger.SetLevel(gostlink.MaxLogLevel)
	case verbosity == 1:
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := applyEnvDefaults(cmd); err != nil {
		return err
	}

	gostlink.SetLogger(logger)

	return gostlink.InitUsb()
}

func applyEnvDefaults(cmd *cobra.Command) error {
	for name, env := range envDefaults {
		flag := cmd.Flags().Lookup(name)

		if flag == nil || flag.Changed {
			continue
		}

		value, ok := os.LookupEnv(env)

		if !ok {
			continue
		}

		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", env, value, err)
		}

		logger.Debugf("--%s=%s taken from %s", name, value, env)
	}

	return nil
}

func tearDown() {
	if openedProbe != nil {
		openedProbe.Close()
		openedProbe = nil
	}

	gostlink.CloseUSB()
}

func debugInterface() (gostlink.DebugInterface, error) {
	switch strings.ToLower(flagInterface) {
	case "swd":
		return gostlink.DebugInterfaceSwd, nil
	case "jtag":
		return gostlink.DebugInterfaceJtag, nil
	default:
		return gostlink.DebugInterfaceSwd, fmt.Errorf("unknown debug interface %q", flagInterface)
	}
}

// openProbe opens the selected probe. A nil probe without error means no
// probe is attached.
func openProbe() (*gostlink.StLink, error) {
	iface, err := debugInterface()

	if err != nil {
		return nil, err
	}

	config := gostlink.NewStLinkConfig(gostlink.AllSupportedVIds, gostlink.AllSupportedPIds,
		iface, flagSerial, flagSpeed).SetLogger(logger)

	probe, err := gostlink.NewStLink(config)

	if errors.Is(err, gostlink.ErrNoProbeFound) {
		logger.Warn("no ST-Link probe found")
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	openedProbe = probe

	return probe, nil
}
