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

	"github.com/mohinranait/koholi/services/storefront/seed"
	"github.com/spf13/cobra"
)

func newSeedCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog",
		Long: `Inserts the demo categories (furniture, electronics, fashion) and their
nine products. Existing slugs are left untouched, so it is safe to run
more than once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := seed.Catalog(commandContext(cmd), st)
			if err != nil {
				return err
			}
			app.out.Success(fmt.Sprintf("Seeded %d categories and %d products", res.CategoriesCreated, res.ProductsCreated))
			if skipped := res.CategoriesSkipped + res.ProductsSkipped; skipped > 0 {
				app.out.Info(fmt.Sprintf("%d entries already existed and were skipped", skipped))
			}
			return nil
		},
	}
}
