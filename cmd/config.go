package cmd

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/openneurolab/neurostream/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage NeuroStream configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available configuration profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		rootConfig, err := config.ValidateConfigurationFormat(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}

		active := rootConfig.ActiveConfig
		if active == "" {
			active = "default"
		}

		names := make([]string, 0, len(rootConfig.Configs))
		for name := range rootConfig.Configs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			marker := "  "
			if name == active {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Set the active configuration profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		// Verify the profile resolves before persisting it
		if _, err := config.LoadWithProfile(cfgFile, name); err != nil {
			return fmt.Errorf("profile '%s' is not usable: %w", name, err)
		}

		if err := config.UpdateActiveConfig(cfgFile, name); err != nil {
			return fmt.Errorf("failed to update active profile: %w", err)
		}

		fmt.Printf("Active profile set to '%s'\n", name)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configProfilesCmd)
	configCmd.AddCommand(configUseCmd)
}
