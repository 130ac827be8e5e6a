// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pairingctl",
	Short: "pairingctl drives a pairing controller over a relay connection",
	Long: `pairingctl is a command-line client for the pairing protocol: it
proposes, responds to, inspects, and tears down end-to-end-encrypted
pairings against a relay server.

This tool supports:
- Generating a proposal and printing its shareable URI
- Responding to a proposal read from a URI
- Listing and inspecting live pairings
- Sending application payloads and deleting pairings`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a pairingctl config file (YAML or JSON)")

	// Note: commands are registered in their respective files
	// - propose.go: proposeCmd
	// - respond.go: respondCmd
	// - serve.go: serveCmd
}
