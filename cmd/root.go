// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-taint/internal/config"
	"github.com/xkilldash9x/scalpel-taint/internal/observability"
)

type contextKey string

// configKey is the context key under which the validated configuration is stored.
const configKey contextKey = "config"

// NewRootCommand builds a fresh command tree. Every call returns independent
// commands and flags, so tests and repeated invocations do not share state.
func NewRootCommand() *cobra.Command {
	return newRootCommand(NewStoreProvider())
}

func newRootCommand(provider storeProvider) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "scalpel-taint",
		Short: "Pattern-driven taint analysis for JavaScript programs.",
		Long: `scalpel-taint traces data from sources to sinks through JavaScript programs
given as ESTree JSON or source text, using a catalog of vulnerability patterns.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger())
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting scalpel-taint", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newAnalyzeCmd(provider))
	rootCmd.AddCommand(newReportCmd(provider))
	rootCmd.AddCommand(newPatternsCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with ctx. Errors are logged before they are
// returned; the caller decides the exit code.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Info("Analysis cancelled")
		} else {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// initializeConfig reads the config file and binds SCALPEL_TAINT_* environment
// variables. A missing default config file is not an error.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	config.BindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration stored by the root command.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in command context")
	}
	return cfg, nil
}
