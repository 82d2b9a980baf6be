package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/user/courier/internal/config"
	"github.com/user/courier/pkg/engine"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "courierctl",
	Short:         "courierctl submits files through an ordered chain of fallback channels",
	Long:          `Submit a form with an attached file. Channels from the config file are tried in order until one succeeds.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "channel config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human readable logs")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("pretty"))
}

func initConfig() {
	viper.SetEnvPrefix("courier")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the channel config named by --config or COURIER_CONFIG.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if lvl := viper.GetString("log.level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if viper.GetBool("log.pretty") {
		cfg.Log.Pretty = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *engine.DefaultLogger {
	return engine.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
}
