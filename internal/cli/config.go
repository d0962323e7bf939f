package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loka-network/loka/internal/daemon"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the gateway configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file if one doesn't exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(daemon.LokaHome(), "config.yaml")
		if _, err := os.Stat(path); err == nil {
			fmt.Println("config already exists:", path)
			return nil
		}
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		if err := daemon.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(daemon.LokaHome() + "/config.yaml")
	},
}
