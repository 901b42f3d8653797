package main

import (
	"fmt"
	"time"

	"booking-app/internal/domain/agent"
	"booking-app/internal/domain/booking"
	"booking-app/internal/infra/logger"

	"github.com/spf13/cobra"
)

func bookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Booking maintenance",
	}

	var olderThan time.Duration
	sweep := &cobra.Command{
		Use:   "sweep-pending",
		Short: "Cancel PENDING bookings that were never confirmed",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			n, err := booking.NewService(db, nil, logger.L).SweepPending(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "canceled %d pending bookings\n", n)
			return nil
		},
	}
	sweep.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "cancel PENDING bookings created before now minus this")
	cmd.AddCommand(sweep)
	return cmd
}

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent proposal maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "expire-proposals",
		Short: "Mark overdue pending proposals expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			cat, err := agent.LoadCatalog()
			if err != nil {
				return err
			}
			exec, err := agent.NewExecutor(db, cat, agent.NewToolbox(db, nil, logger.L).Handlers(), logger.L)
			if err != nil {
				return err
			}
			n, err := exec.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d proposals\n", n)
			return nil
		},
	})
	return cmd
}
