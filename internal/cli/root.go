package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagServer string
	flagName   string
	flagDB     string

	appConfig *Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cinema",
		Short: "Watch videos in sync with friends from the terminal",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			appConfig.Server = flagServer
			appConfig.Name = flagName
			appConfig.DBPath = flagDB
		},
	}

	// Resolve defaults: flags > env vars > .cinema.yaml > hardcoded defaults.
	path := os.Getenv("CINEMA_CONFIG")
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = findConfigFile(wd)
		}
	}
	cfg, err := loadConfig(path)
	if err != nil {
		log.Printf("config: %v (using defaults)", err)
		cfg, _ = loadConfig("")
	}
	appConfig = cfg

	root.PersistentFlags().StringVarP(&flagServer, "server", "s", cfg.Server, "room service URL")
	root.PersistentFlags().StringVarP(&flagName, "name", "n", cfg.Name, "display name (defaults to the stored username)")
	root.PersistentFlags().StringVar(&flagDB, "db", cfg.DBPath, "local state database")

	root.AddCommand(
		newWatchCmd(),
		newCreateCmd(),
		newCheckCmd(),
		newNameCmd(),
		newMCPServeCmd(),
	)

	return root
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
