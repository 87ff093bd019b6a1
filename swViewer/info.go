// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	gostlink "github.com/bbnote/gostlink-swo"
	"github.com/bbnote/gostlink-swo/coresight"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show probe, target and debug component details",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	probe, err := openProbe()

	if err != nil || probe == nil {
		return err
	}

	fmt.Printf("probe:    %s serial %s\n", probe.Device(), probe.Device().Serial)
	fmt.Printf("firmware: %s\n", probe.Version())

	if mode, err := probe.GetMode(); err == nil {
		fmt.Printf("mode:     %s\n", mode)
	}

	if voltage, err := probe.GetTargetVoltage(); err == nil {
		fmt.Printf("target:   %.2f V\n", voltage)
	}

	if err := probe.EnterProperMode(); err != nil {
		return err
	}

	if idCode, err := probe.GetIdCode(); err == nil {
		fmt.Printf("idcode:   0x%08x\n", idCode)
	}

	printChipId(probe)

	target := coresight.NewTarget(probe, coresight.WithLogger(logger))

	if err := target.ReadDebugComponents(); err != nil {
		return err
	}

	for _, c := range target.Components() {
		fmt.Printf("  %s\n", c)
	}

	return nil
}

// printChipId shows the STM32 family of the target and returns its RAM
// layout when the device id is known.
func printChipId(probe *gostlink.StLink) (gostlink.StmChipInfo, bool) {
	chipId, err := probe.ReadChipId()

	if err != nil {
		logger.Warn(err)
		return gostlink.StmChipInfo{}, false
	}

	chip, known := gostlink.LookupChip(chipId)
	name := chip.Name

	if !known {
		name = "unknown"
	}

	fmt.Printf("chip:     %s (device 0x%03x revision 0x%04x)\n", name, chipId&0xFFF, chipId>>16)

	return chip, known
}
