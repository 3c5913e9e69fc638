package main

import (
	"github.com/spf13/cobra"
)

var inventoryPath string

var rootCmd = &cobra.Command{
	Use:   "ssh-transfer",
	Short: "Scheduled file transfers to and from SSH hosts",
	Long: `ssh-transfer moves files between local directories and remote SSH hosts
on per-server schedules, cleans up afterwards and reports every run.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inventoryPath, "inventory", "i", getenv("INVENTORY_FILE", "deploy/inventory.example.yaml"), "inventory file (.yaml or .toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(versionCmd)
}
