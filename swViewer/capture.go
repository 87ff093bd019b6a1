// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gostlink "github.com/bbnote/gostlink-swo"
	"github.com/bbnote/gostlink-swo/capture"
	"github.com/bbnote/gostlink-swo/coresight"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagAddress  uint32
	flagCpuHz    uint32
	flagSwoHz    uint32
	flagInterval time.Duration
	flagRomBases []string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Trace accesses to a memory address and print the packets",
	Long: `Enters debug mode, discovers the trace components of the target, points
DWT comparator 0 at --address and prints every ITM/DWT packet received over
SWO until interrupted.`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Uint32VarP(&flagAddress, "address", "a", 0x20000004, "memory address to trace")
	captureCmd.Flags().Uint32Var(&flagCpuHz, "cpu-hz", 72000000, "trace clock of the target in Hz")
	captureCmd.Flags().Uint32Var(&flagSwoHz, "swo-hz", 0, "SWO baud rate in Hz (0 selects the probe maximum)")
	captureCmd.Flags().DurationVar(&flagInterval, "interval", capture.DefaultInterval, "trace buffer polling interval")
	captureCmd.Flags().StringSliceVar(&flagRomBases, "rom-table",
		[]string{fmt.Sprintf("0x%08X", coresight.DefaultRomTableBase)}, "rom table base addresses to walk")
}

func runCapture(cmd *cobra.Command, args []string) error {
	bases, err := parseAddresses(flagRomBases)

	if err != nil {
		return err
	}

	session := logger.WithField("session", xid.New().String())

	probe, err := openProbe()

	if err != nil || probe == nil {
		return err
	}

	if !probe.Version().HasTrace() {
		return gostlink.ErrTraceNotSupported
	}

	if err := probe.EnterProperMode(); err != nil {
		return err
	}

	if chip, known := printChipId(probe); known && !chip.ContainsRam(flagAddress) {
		session.Warnf("trace address 0x%08x is outside the %d KiB RAM of %s", flagAddress, chip.RamSize/1024, chip.Name)
	}

	target := coresight.NewTarget(probe,
		coresight.WithRomTableBases(bases...),
		coresight.WithLogger(session))

	if err := target.ReadDebugComponents(); err != nil {
		return err
	}

	prescaler, err := probe.EnableTrace(flagSwoHz, flagCpuHz)

	if err != nil {
		return err
	}

	if err := target.ConfigureTraceOutput(prescaler); err != nil {
		if !errors.Is(err, coresight.ErrNoTraceComponent) {
			return err
		}

		session.Warn("no TPIU found, the firmware has to set up SWO output")
	}

	if err := target.StartTraceMemoryAddress(flagAddress); err != nil {
		return err
	}

	loop, err := capture.NewLoop(capture.Config{
		Source:   probe,
		Sink:     capture.SinkFunc(printPacket(session)),
		Poller:   target,
		Interval: flagInterval,
		Logger:   session,
	})

	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setUpSignalHandler(cancel)

	session.Infof("capturing trace of 0x%08x, press Ctrl+C to stop", flagAddress)

	err = loop.Run(ctx)

	stats := loop.Stats()
	session.Infof("captured %d bytes, %d packets (%d short reads, %d probe errors, %d bytes resynchronized)",
		stats.Bytes, stats.Packets, stats.ShortReads, stats.SourceErrors, stats.DecodeFaults)

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// parseAddresses accepts decimal, 0x hex and 0 octal values.
func parseAddresses(values []string) ([]uint32, error) {
	addresses := make([]uint32, 0, len(values))

	for _, v := range values {
		addr, err := strconv.ParseUint(v, 0, 32)

		if err != nil {
			return nil, fmt.Errorf("invalid rom table address %q: %w", v, err)
		}

		addresses = append(addresses, uint32(addr))
	}

	return addresses, nil
}

func setUpSignalHandler(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)

	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		cancel()
	}()
}

func printPacket(log logrus.FieldLogger) func(p coresight.Packet) {
	return func(p coresight.Packet) {
		switch p.Kind {
		case coresight.PacketSoftware, coresight.PacketHardware:
			log.Info(p)
		case coresight.PacketOverflow:
			log.Warn("trace overflow, packets were lost")
		default:
			log.Debug(p)
		}
	}
}
