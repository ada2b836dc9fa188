package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hyperjump/transmatch/internal/cli"
	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/pkg/utils"
)

type commandContext struct {
	configFlag string
	debugFlag  bool
	outputFlag string
	serverFlag string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, err := loadConfig(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) debug() bool {
	return c.debugFlag || (c.config != nil && c.config.Debug)
}

func (c *commandContext) newLogger(extra ...zapcore.Core) (*zap.Logger, error) {
	logger, err := utils.NewLogger(c.debug(), extra...)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) format() (cli.OutputFormat, error) {
	return cli.ParseOutputFormat(c.outputFlag)
}

func (c *commandContext) serverURL() string {
	return strings.TrimRight(strings.TrimSpace(c.serverFlag), "/")
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "transmatch",
		Short:         "Find the originals of translated articles in a source corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfig"] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", defaultConfigPath, "config file path")
	flags.BoolVar(&ctx.debugFlag, "debug", false, "enable debug logging")
	flags.StringVarP(&ctx.outputFlag, "output", "o", "table", "output format: table, text or json")
	flags.StringVar(&ctx.serverFlag, "server", "", "server URL; when set, query a running server instead of opening storage")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newResultsCommand(ctx))
	rootCmd.AddCommand(newCandidatesCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newSheetsCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Annotations: map[string]string{"skipConfig": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "transmatch version %s\n", version)
			return nil
		},
	}
}
