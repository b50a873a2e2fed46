package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"masader/internal/cache"
	"masader/internal/config"
	"masader/internal/engine"
	"masader/internal/logger"
)

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cfg := config.New()
	rc := &cobra.Command{
		Use:   "masader",
		Short: "Masader serves the Arabic NLP dataset catalog over HTTP.",
		Long: `Masader serves the Arabic NLP dataset catalog over HTTP.

The catalog and its tag taxonomy are read from a cache store
(redis, bolt or memory) and refreshed by an external job.
Without a subcommand the HTTP server is started.

Version ` + Version + "\n",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(viper.New(), cmd.Flags()); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, stderr)
		},
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	cfg.Flags(rc.PersistentFlags())

	rc.AddCommand(newServeCommand(cfg, stderr))
	rc.AddCommand(newSeedCommand(cfg, stdout, stderr))
	rc.AddCommand(newQueryCommand(cfg, stdout, stderr))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func newLogger(cfg *config.Config, w io.Writer) logger.Logger {
	if cfg.Verbose {
		return logger.NewVerboseLogger(w)
	}
	return logger.NewStandardLogger(w)
}

// newLoader opens the configured cache store and a loader reading it.
func newLoader(cfg *config.Config, l logger.Logger) (*engine.Loader, error) {
	c, err := cache.Open(cfg.Cache.Config)
	if err != nil {
		return nil, err
	}
	loader := engine.NewLoader(c)
	loader.MasaderKey = cfg.Cache.MasaderKey
	loader.TagsKey = cfg.Cache.TagsKey
	loader.Strict = cfg.Schema.Strict
	loader.Logger = l
	return loader, nil
}
