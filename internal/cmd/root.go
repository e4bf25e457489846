package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appcfg "candymint/internal/infra/config"
	"candymint/internal/platform/di"
	"candymint/internal/platform/logging"
)

var rootCmd = &cobra.Command{
	Use:   "candymint",
	Short: "Candy machine v2 mint client",
	Long: `candymint reads a Metaplex candy machine, resolves the current sale phase
and mints one token per request with the configured wallet. Gated candy
machines are handled through the Civic gateway token flow.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (yaml/toml/json; env vars take precedence)")
	rootCmd.PersistentFlags().String("candy-machine", "", "candy machine address (CANDY_MACHINE_ID)")
	rootCmd.PersistentFlags().String("rpc", "", "Solana RPC endpoint (SOLANA_RPC_HOST)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (LOG_LEVEL)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("candy_machine_id", rootCmd.PersistentFlags().Lookup("candy-machine"))
	_ = viper.BindPFlag("solana_rpc_host", rootCmd.PersistentFlags().Lookup("rpc"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	appcfg.SetDefaults(viper.GetViper())

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
}

// newContainer loads config + logger and wires the dependency graph.
func newContainer(cmd *cobra.Command) (*di.Container, error) {
	cfg, err := appcfg.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	return di.New(cmd.Context(), cfg, log)
}
