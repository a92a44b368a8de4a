package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"promptforge/internal/llm"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured model endpoint is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			if err := llm.Probe(ctx, cfg.LLM(logger)); err != nil {
				return fmt.Errorf("%w\nensure the local model server is running at %s", err, cfg.Endpoint)
			}
			fmt.Printf("ok: %s answers at %s\n", cfg.Model, cfg.Endpoint)
			return nil
		},
	}
}
