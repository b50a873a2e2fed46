package main

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"masader/internal/config"
	"masader/internal/engine"
)

func newQueryCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	var (
		fields []string
		page   int
		size   int
	)
	cmd := &cobra.Command{
		Use:   "query [expression]",
		Short: "Filter the cached catalog from the command line.",
		Long: `query loads the catalog from the cache store and prints the
records matching expression as JSON, e.g.

    masader query "Year >= 2020 and License == 'CC BY 4.0'" --features Name,Year

Paging applies before filtering, as it does for GET /datasets.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := newLoader(cfg, newLogger(cfg, stderr))
			if err != nil {
				return err
			}
			defer loader.Cache.Close()

			snap, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}

			records := snap.Records
			if size > 0 || page > 1 {
				if size <= 0 {
					size = len(records)
				}
				if records, err = engine.Paginate(records, page, size); err != nil {
					return err
				}
			}

			var q engine.Query
			if len(args) == 1 {
				q.Filter = args[0]
			}
			q.Fields = fields
			q.Schema = snap.Schema
			records, err = engine.Run(cmd.Context(), records, q)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(records); err != nil {
				return fmt.Errorf("encoding result: %v", err)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&fields, "features", nil, "Columns to print, in order.")
	flags.IntVar(&page, "page", 1, "1-based page number.")
	flags.IntVar(&size, "size", 0, "Page size, 0 for all records.")
	return cmd
}
