// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/mohinranait/koholi/pkg/ux"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/orders"
	"github.com/spf13/cobra"
)

func newStatsCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := orders.NewService(st, nil).Stats(commandContext(cmd))
			if err != nil {
				return err
			}
			printStats(app.out, stats)
			return nil
		},
	}
}

func printStats(out *ux.Printer, stats *datatypes.DashboardStats) {
	fields := []ux.Field{
		{Label: "Products", Value: fmt.Sprintf("%d", stats.TotalProducts)},
		{Label: "Categories", Value: fmt.Sprintf("%d", stats.TotalCategories)},
		{Label: "Orders", Value: fmt.Sprintf("%d", stats.TotalOrders)},
		{Label: "Revenue", Value: fmt.Sprintf("৳%.2f", stats.Revenue)},
	}
	for _, s := range datatypes.OrderStatuses {
		fields = append(fields, ux.Field{
			Label: string(s),
			Value: out.Bar(stats.OrdersByStatus[s], stats.TotalOrders, 20),
		})
	}
	out.KeyValues("Dashboard", fields)
}
