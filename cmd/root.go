package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veilscope/veilscope/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "veilscope",
	Short: "Exposure correlation and confidence scoring engine",
	Long: `Veilscope correlates a subject's known identifiers (email, phone, name,
username) against data collected by OSINT providers, scores how strongly
each identifier is corroborated, and assembles an identity graph of
discovered profiles and data exposures.

Correlation is a metered premium operation: every invocation charges the
workspace credit ledger before any computation runs.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./veilscope.yaml)")
}

// loadConfig layers file and environment overrides on top of the defaults.
// Environment variables use the VEILSCOPE_ prefix with underscores, e.g.
// VEILSCOPE_DATABASE_DSN.
func loadConfig() error {
	v := viper.New()
	v.SetEnvPrefix("VEILSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("veilscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/veilscope")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config is fine; an explicit or broken one is not.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg = config.Default()
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.Validate()
}
