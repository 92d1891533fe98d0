package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"conductor/internal/config"
	"conductor/internal/utils"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "conductor",
		Short:         "Role-based coding agent task orchestrator",
		Long:          "conductor schedules coding tasks across role agents (docs, test,\nrefactor, qa, feature), gates risky plans on approval and drives each\ntask through a bounded tool-calling loop.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to config file (YAML)")
	root.PersistentFlags().String("log-level", "", "debug log level (debug|info|warn|error)")

	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newListCmd(v))
	return root
}

// loadConfig resolves flags, environment and file into one Config.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	if level := v.GetString("log.level"); level != "" {
		cfg.Log.Level = level
	}
	if v.IsSet("scheduler.max_concurrent") {
		cfg.Scheduler.MaxConcurrent = v.GetInt("scheduler.max_concurrent")
	}
	if v.IsSet("loop.max_iterations") {
		cfg.Loop.MaxIterations = v.GetInt("loop.max_iterations")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Log.Level != "" {
		utils.GetLogger().SetLevel(utils.ParseLevel(cfg.Log.Level))
	}
	return cfg, nil
}
