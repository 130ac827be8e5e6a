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
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/pairing/pairing"
)

var (
	respondURI      string
	respondApprove  bool
	respondReason   string
	respondDeadline time.Duration
)

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Answer a proposal read from its signal URI",
	Long: `respond reconstructs a Proposal from a signal URI (as produced by
propose) and answers it, approving or rejecting. On approval it settles the
pairing and keeps running so it can exchange further messages; Ctrl-C to
exit.`,
	RunE: runRespond,
}

func init() {
	rootCmd.AddCommand(respondCmd)
	respondCmd.Flags().StringVarP(&respondURI, "uri", "u", "", "signal URI produced by propose (required)")
	respondCmd.Flags().BoolVar(&respondApprove, "approve", true, "approve the proposal (false rejects it)")
	respondCmd.Flags().StringVar(&respondReason, "reason", "", "rejection reason, used only when --approve=false")
	respondCmd.Flags().DurationVar(&respondDeadline, "timeout", 30*time.Second, "how long to wait for the handshake to complete")
	_ = respondCmd.MarkFlagRequired("uri")
}

func runRespond(cmd *cobra.Command, args []string) error {
	proposal, err := pairing.ProposalFromSignalURI(respondURI)
	if err != nil {
		return fmt.Errorf("parse signal uri: %w", err)
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), respondDeadline)
	defer cancel()

	settled, err := ctrl.Respond(ctx, pairing.RespondOptions{
		Proposal: proposal,
		Approved: respondApprove,
		Reason:   respondReason,
	})
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	fmt.Printf("settled topic: %s\n", settled.Topic)

	return waitForSignal()
}
