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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/pairing/pairing"
)

var proposeWait time.Duration

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Generate a pairing proposal and print its shareable URI",
	Long: `propose allocates a fresh proposal topic and keypair, prints the
signal URI to share with the responder out-of-band, then blocks waiting for
the responder's pairing_respond. Once settled it keeps running so the
pairing can exchange further messages; Ctrl-C to exit.`,
	RunE: runPropose,
}

func init() {
	rootCmd.AddCommand(proposeCmd)
	proposeCmd.Flags().DurationVar(&proposeWait, "wait", 2*time.Minute, "how long to wait for the responder's answer")
}

func runPropose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctrl, client, err := dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), proposeWait)
	defer cancel()

	proposal, err := ctrl.Create(ctx, pairing.CreateOptions{})
	if err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	fmt.Printf("proposal topic: %s\n", proposal.Topic)
	fmt.Printf("signal uri:     %s\n", proposal.Signal.Params.URI)
	fmt.Println("waiting for responder...")

	settled, err := ctrl.Await(ctx, proposal.Topic)
	if err != nil {
		return fmt.Errorf("await response: %w", err)
	}
	fmt.Printf("settled topic: %s\n", settled.Topic)

	return waitForSignal()
}

func waitForSignal() error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Println("shutting down")
	return nil
}
