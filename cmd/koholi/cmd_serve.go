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
	"os"
	"os/signal"
	"syscall"

	"github.com/mohinranait/koholi/pkg/extensions"
	"github.com/mohinranait/koholi/services/storefront"
	"github.com/spf13/cobra"
)

func newServeCmd(app *cli) *cobra.Command {
	var insecureAdmin bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		Long: `Runs the API server until interrupted. Changes to the logging level in
the config file are applied without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			opts := extensions.DefaultOptions()
			if insecureAdmin {
				app.out.Warning("Every request is treated as an admin. Never use --insecure-admin in production.")
				opts = opts.WithAuth(&extensions.StaticAuthProvider{Info: extensions.AuthInfo{
					UserID: "000000000000000000000000",
					Role:   extensions.RoleAdmin,
				}})
			}

			var svcOpts []storefront.Option
			if exists, _ := app.configFileExists(); exists {
				svcOpts = append(svcOpts, storefront.WithConfigPath(app.configPath))
			}

			svc, err := storefront.New(cfg, &opts, svcOpts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return svc.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&insecureAdmin, "insecure-admin", false, "authenticate every request as an admin (local UI development only)")
	return cmd
}
