// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	gostlink "github.com/bbnote/gostlink-swo"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached ST-Link probes",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	devices, err := gostlink.ListDevices()

	if err != nil {
		return err
	}

	if len(devices) == 0 {
		logger.Warn("no ST-Link probe found")
		return nil
	}

	for _, d := range devices {
		fmt.Printf("%s serial %s\n", d, d.Serial)
	}

	return nil
}
