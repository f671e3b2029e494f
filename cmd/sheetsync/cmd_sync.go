package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sinergia/backend/internal/app"
	"github.com/sinergia/backend/internal/config"
	"github.com/sinergia/backend/internal/ingest"
)

var (
	syncRange string
	syncUser  string
)

var syncCmd = &cobra.Command{
	Use:   "sync [spreadsheet-id]",
	Short: "Replace the stored rows of a scope with the current sheet content",
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

var rowsCmd = &cobra.Command{
	Use:   "rows [spreadsheet-id]",
	Short: "Print the stored rows of a scope as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRows,
}

func openService(ctx context.Context) (*ingest.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a.Ingest(), func() {
		if err := a.Close(); err != nil {
			logger.Warn("close app", zap.Error(err))
		}
	}, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, closeFn, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := svc.Sync(ctx, ingest.SyncRequest{
		SpreadsheetID: args[0],
		Range:         syncRange,
		UserID:        syncUser,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message())
	return nil
}

func runRows(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, closeFn, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	rows, err := svc.Rows(ctx, args[0], syncUser)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
