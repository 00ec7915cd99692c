/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "streamcore",
	Short: "Whole-home audio streaming core",
	Long:  "streamcore drives the flow generator, multi-client fan-out, and transcoder for a whole-home audio player network.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "streamcore: %v\n", err)
		os.Exit(1)
	}
}
