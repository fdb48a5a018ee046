package cmd

import (
	"fmt"
	"os"

	"github.com/mblarsen/clin/internal/config"
	"github.com/mblarsen/clin/internal/fileutil"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the clin configuration.",
	Long: fmt.Sprintf(`clin reads its settings from a TOML file, by default config.toml in
$XDG_CONFIG_HOME/clin, or from the path in %s. Environment variables
override the file and flags override both.`, config.EnvConfig),
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ResolvePath()
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			if !stdinIsTerminal() || !confirm(fmt.Sprintf("%s exists. Overwrite?", path), cmd.InOrStdin(), cmd.OutOrStdout()) {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}
		}

		data, err := config.Default().Marshal("toml")
		if err != nil {
			return err
		}
		if _, err := fileutil.AtomicWriteFile(path, data, 0600); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration.",
	Long:  `Print the configuration after applying the config file and environment variables.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		data, err := cfg.Marshal(format)
		if err != nil {
			return &exitError{code: exitUsage, err: err}
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file.")
	configShowCmd.Flags().String("format", "toml", "Output format: toml, yaml or json.")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
