// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 DBTM Project

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aryaw001/dbtm-station/pkg/measureapi"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted measurements for a user",
	Long: `Fetch the measurement history stored by the DBTM API.

Requires --api plus either --user-id or --email.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if apiBase == "" {
		return fmt.Errorf("--api is required")
	}

	client := measureapi.New(apiBase, logger)
	uid, err := resolveUserID(cmd.Context(), client)
	if err != nil {
		return err
	}

	recs, err := client.History(cmd.Context(), uid)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No measurements recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tCROWN\tSHOULDER\tELBOW\tHIP\tHAND\tKNEE\tANKLE\tWEIGHT")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\n",
			rec.Date, rec.Time,
			rec.CrownHeight, rec.ShoulderHeight, rec.ElbowReach, rec.HipHeight,
			rec.HandReach, rec.KneeHeight, rec.AnkleHeight, rec.Weight)
	}
	return w.Flush()
}
