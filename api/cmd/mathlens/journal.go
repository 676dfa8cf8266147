package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sugun00/Meta-martin/api/internal/store"
)

var errNoDatabase = errors.New("journal requires DATABASE_URL or POSTGRES_HOST")

func newJournalCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the analysis journal",
	}
	cmd.AddCommand(newJournalRecentCommand(ctx))
	cmd.AddCommand(newJournalPurgeCommand(ctx))
	return cmd
}

func withJournal(cmd *cobra.Command, ctx *commandContext, fn func(*store.Journal) error) error {
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errNoDatabase
	}
	db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	j := store.NewJournal(db)
	if err := j.EnsureSchema(cmd.Context()); err != nil {
		return err
	}
	return fn(j)
}

func newJournalRecentCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, ctx, func(j *store.Journal) error {
				entries, err := j.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, entries)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEntries(entries))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newJournalPurgeCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete journal entries older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return withJournal(cmd, ctx, func(j *store.Journal) error {
				n, err := j.PurgeOlderThan(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age threshold")
	return cmd
}

func renderEntries(entries []store.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			e.Source,
			e.Outcome,
			e.Category,
			e.Engine,
			strconv.FormatInt(e.SizeBytes, 10),
			e.Duration.Round(time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"Time", "Source", "Outcome", "Type", "Engine", "Bytes", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}
