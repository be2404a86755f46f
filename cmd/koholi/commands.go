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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mohinranait/koholi/pkg/logging"
	"github.com/mohinranait/koholi/pkg/ux"
	"github.com/mohinranait/koholi/services/storefront"
	"github.com/mohinranait/koholi/services/storefront/config"
	"github.com/mohinranait/koholi/services/storefront/store"
	"github.com/spf13/cobra"
)

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	plain      bool

	out *ux.Printer

	// prompt fills missing admin fields interactively. Replaced in tests.
	prompt func(in *adminInput) error
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&cli{prompt: promptAdmin})
}

func newRootCmdFor(app *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "koholi",
		Short: "Run and manage the Koholi storefront API",
		Long: `koholi serves the storefront and admin API and provides tools for
seeding the catalog, creating admin accounts and inspecting the shop.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.out = ux.NewPrinter(cmd.OutOrStdout(), app.plain)
		},
	}
	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", config.DefaultPath, "path to the config file")
	root.PersistentFlags().BoolVar(&app.plain, "plain", false, "disable colors and boxes")

	root.AddCommand(
		newServeCmd(app),
		newSeedCmd(app),
		newAdminCmd(app),
		newStatsCmd(app),
		newConfigCmd(app),
	)
	return root
}

// configFileExists reports whether the config path points at a file. A
// missing default path is not an error: defaults and KOHOLI_* variables
// apply.
func (app *cli) configFileExists() (bool, error) {
	_, err := os.Stat(app.configPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist) && app.configPath == config.DefaultPath:
		return false, nil
	default:
		return false, fmt.Errorf("config file: %w", err)
	}
}

func (app *cli) loadConfig() (*config.Config, error) {
	exists, err := app.configFileExists()
	if err != nil {
		return nil, err
	}
	path := app.configPath
	if !exists {
		path = ""
	}
	return config.Load(path)
}

// openStore loads the config and opens its database with a warn-level
// logger on stderr.
func (app *cli) openStore(cmd *cobra.Command) (store.Store, error) {
	cfg, err := app.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   logging.LevelWarn,
		Service: "koholi-cli",
		Output:  cmd.ErrOrStderr(),
	})
	return storefront.OpenStore(commandContext(cmd), cfg.Database, logger.Slog())
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
