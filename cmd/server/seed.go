package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"masader/internal/config"
	"masader/internal/refresh"
)

func newSeedCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	var datasets, tags string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a catalog and tags document into the cache store.",
		Long: `seed reads a catalog document (a JSON array of dataset records)
and a tags document (a JSON or YAML mapping of category to values),
validates them and writes both into the cache store.

Both arguments may be local paths or any URL supported by afs,
e.g. https:// or s3://.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if datasets == "" || tags == "" {
				return fmt.Errorf("both --datasets and --tags are required")
			}
			l := newLogger(cfg, stderr)
			loader, err := newLoader(cfg, l)
			if err != nil {
				return err
			}
			defer loader.Cache.Close()

			masaderURL, err := toURL(datasets)
			if err != nil {
				return err
			}
			tagsURL, err := toURL(tags)
			if err != nil {
				return err
			}

			job := refresh.NewSourceJob(loader.Cache, masaderURL, tagsURL, l)
			job.MasaderKey = loader.MasaderKey
			job.TagsKey = loader.TagsKey
			if err := job.Run(cmd.Context()); err != nil {
				return err
			}

			snap, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "seeded %d datasets and %d tag categories\n", snap.Len(), snap.Tags.Len())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&datasets, "datasets", "", "Catalog document to seed.")
	flags.StringVar(&tags, "tags", "", "Tags document to seed.")
	return cmd
}

// toURL turns a local path into a file URL and leaves URLs untouched.
func toURL(location string) (string, error) {
	if strings.Contains(location, "://") {
		return location, nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}
