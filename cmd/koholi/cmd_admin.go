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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/mohinranait/koholi/pkg/validation"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
	"github.com/spf13/cobra"
)

type adminInput struct {
	Name    string
	Phone   string
	Address string
}

func (in adminInput) complete() bool {
	return in.Name != "" && in.Phone != "" && in.Address != ""
}

func newAdminCmd(app *cli) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var in adminInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account, or promote an existing user",
		Long: `Creates an active admin with the given phone number. When the phone
already belongs to a user, that user is promoted to admin and activated.
Missing flags are asked for interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !in.complete() {
				if err := app.prompt(&in); err != nil {
					return err
				}
			}

			req := datatypes.CreateUserRequest{
				Name:    in.Name,
				Phone:   in.Phone,
				Address: in.Address,
				Role:    datatypes.RoleAdmin,
				Status:  datatypes.StatusActive,
			}
			req.Normalize()
			if err := req.Validate(); err != nil {
				return err
			}

			st, err := app.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := commandContext(cmd)

			existing, err := st.Users().GetByPhone(ctx, req.Phone)
			switch {
			case err == nil:
				existing.Role = datatypes.RoleAdmin
				existing.Status = datatypes.StatusActive
				if err := st.Users().Update(ctx, existing); err != nil {
					return fmt.Errorf("promote user: %w", err)
				}
				app.out.Success(fmt.Sprintf("Promoted %s (%s) to admin", existing.Name, existing.Phone))
				return nil
			case errors.Is(err, store.ErrNotFound):
				u := req.User()
				if err := st.Users().Create(ctx, u); err != nil {
					return fmt.Errorf("create admin: %w", err)
				}
				app.out.Success(fmt.Sprintf("Created admin %s (%s)", u.Name, u.Phone))
				return nil
			default:
				return fmt.Errorf("look up phone: %w", err)
			}
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "display name")
	create.Flags().StringVar(&in.Phone, "phone", "", "login phone number (01XXXXXXXXX)")
	create.Flags().StringVar(&in.Address, "address", "", "postal address, at least 10 characters")

	admin.AddCommand(create)
	return admin
}

// promptAdmin asks for the fields still empty in in.
func promptAdmin(in *adminInput) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return errors.New("--name, --phone and --address are required when not running in a terminal")
	}

	var fields []huh.Field
	if in.Name == "" {
		fields = append(fields, huh.NewInput().
			Title("Name").
			Value(&in.Name).
			Validate(func(s string) error {
				if !validation.IsPersonName(strings.TrimSpace(s)) {
					return errors.New("name must be 2 to 50 letters and spaces")
				}
				return nil
			}))
	}
	if in.Phone == "" {
		fields = append(fields, huh.NewInput().
			Title("Phone").
			Placeholder("01XXXXXXXXX").
			Value(&in.Phone).
			Validate(func(s string) error {
				_, err := validation.NormalizePhone(s)
				return err
			}))
	}
	if in.Address == "" {
		fields = append(fields, huh.NewInput().
			Title("Address").
			Value(&in.Address).
			Validate(func(s string) error {
				if len(strings.TrimSpace(s)) < 10 {
					return errors.New("address must be at least 10 characters")
				}
				return nil
			}))
	}

	return huh.NewForm(huh.NewGroup(fields...)).Run()
}
