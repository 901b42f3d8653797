package main

import (
	"fmt"

	"booking-app/config"
	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/tenants"

	"github.com/spf13/cobra"
)

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}
	cmd.AddCommand(tenantCreateCmd())
	cmd.AddCommand(tenantRotateKeyCmd())
	return cmd
}

func tenantCreateCmd() *cobra.Command {
	var (
		email, timezone, currency, commission string
	)
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a tenant and print its API keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			if commission == "" {
				commission = config.PLATFORM_COMMISSION_PERCENT
			}
			pct, err := billing.ParseCommission(commission)
			if err != nil {
				return err
			}
			t, sk, err := tenants.Create(cmd.Context(), db, tenants.CreateInput{
				Name:              args[0],
				Email:             email,
				Timezone:          timezone,
				Currency:          currency,
				CommissionPercent: pct,
				KeyMode:           tenants.KeyMode(config.IsProduction()),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:          %s\n", t.ID)
			fmt.Fprintf(out, "slug:        %s\n", t.Slug)
			fmt.Fprintf(out, "public key:  %s\n", t.PublicKey)
			fmt.Fprintf(out, "secret key:  %s\n", sk)
			fmt.Fprintln(out, "store the secret key now, it is not shown again")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone for the booking calendar")
	cmd.Flags().StringVar(&currency, "currency", "usd", "ISO currency code")
	cmd.Flags().StringVar(&commission, "commission", "", "platform commission percent (defaults to PLATFORM_COMMISSION_PERCENT)")
	return cmd
}

func tenantRotateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key [id-or-slug]",
		Short: "Replace a tenant's secret key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			t, err := tenants.GetBySlug(cmd.Context(), db, args[0])
			if err != nil {
				t, err = tenants.Get(cmd.Context(), db, args[0])
			}
			if err != nil {
				return fmt.Errorf("tenant %q: %w", args[0], err)
			}
			sk, err := tenants.RotateSecretKey(cmd.Context(), db, t.ID, tenants.KeyMode(config.IsProduction()))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "new secret key for %s: %s\n", t.Slug, sk)
			return nil
		},
	}
}
