package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	cliName    = "taskgraphctl"
	cliVersion = "0.1.0"
)

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:     cliName,
		Short:   "Load and drive task-group workflow documents",
		Version: cliVersion,
	}

	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: json, console")
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	v.SetEnvPrefix("TASKGRAPHCTL")
	v.AutomaticEnv()

	rootCmd.AddCommand(newRunCommand(v))
	rootCmd.AddCommand(newPlanCommand(v))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
