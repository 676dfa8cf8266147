package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sugun00/Meta-martin/api/internal/relay"
	"github.com/sugun00/Meta-martin/api/internal/util"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze one local image and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "table" {
				return fmt.Errorf("unknown format %q (want json or table)", format)
			}
			cfg, err := requireConfig(ctx)
			if err != nil {
				return err
			}
			log := ctx.logger(cmd.ErrOrStderr())

			a, err := buildApp(cmd.Context(), cfg, log, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			res, aerr := a.svc.Analyze(cmd.Context(), relay.Incoming{
				Filename:    filepath.Base(path),
				ContentType: util.MimeFromFilename(path),
				Body:        f,
				Source:      "cli",
			})

			if format == "json" {
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderResult(res))
			}
			if aerr != nil {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or table")
	return cmd
}

func renderResult(res relay.Result) string {
	if !res.Success {
		return renderTable([]string{"Field", "Value"}, [][]string{
			{"success", "false"},
			{"error", res.Error},
		}, nil)
	}
	rows := [][]string{
		{"success", "true"},
		{"type", string(res.Type)},
	}
	for i, s := range res.Steps {
		rows = append(rows, []string{fmt.Sprintf("step %d", i+1), strings.TrimSpace(s)})
	}
	rows = append(rows, []string{"final answer", res.FinalAnswer})
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
