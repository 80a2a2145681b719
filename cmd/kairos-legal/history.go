// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/jllopis/kairos-legal/pkg/config"
	"github.com/jllopis/kairos-legal/pkg/ledger"
)

func (a *app) runHistory(ctx context.Context, args []string) error {
	cmd := pflag.NewFlagSet("history", pflag.ContinueOnError)
	cmd.SetOutput(a.stderr)
	limit := cmd.Int("limit", 20, "Maximum number of reviews to list")
	status := cmd.String("status", "", "Filter by status")
	variant := cmd.String("variant", "", "Filter by variant")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("history", err.Error())
	}

	if a.cfg.Ledger.Driver == config.LedgerMemory {
		a.logger.Warn("memory ledger does not keep reviews from earlier runs",
			"hint", "set ledger.driver=sqlite to list past reviews")
	}
	store, err := openLedger(a.cfg.Ledger)
	if err != nil {
		return err
	}
	defer store.Close()

	reviews, err := store.List(ctx, ledger.Filter{Status: *status, Variant: *variant, Limit: *limit})
	if err != nil {
		return err
	}
	if a.global.JSON {
		if reviews == nil {
			reviews = []ledger.Review{}
		}
		return a.printJSON(reviews)
	}
	if len(reviews) == 0 {
		fmt.Fprintln(a.stdout, "No reviews recorded.")
		return nil
	}

	w := newTabWriter(a.stdout)
	writeRow(w, "ID", "STARTED", "VARIANT", "STATUS", "RISK", "AGENTS", "DURATION", "ERROR")
	for _, r := range reviews {
		writeRow(w,
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Variant,
			r.Status,
			r.RiskLevel,
			strconv.Itoa(r.AgentsReleased)+"/"+strconv.Itoa(r.AgentsCreated),
			r.Duration().Round(time.Millisecond).String(),
			truncate(r.Error, 60),
		)
	}
	return w.Flush()
}
