package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
	Long: `Show the effective settings or persist a single value to the config file.

Environment variables named IMGSEARCH_<KEY> override the file, e.g.
IMGSEARCH_SEARCH_HOST for search.host.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Persist a setting to the config file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	keys := settingsService.Keys()
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		value, err := settingsService.Value(settings, key)
		if err != nil {
			return err
		}
		if value == "" {
			value = mutedStyle.Render("(not set)")
		}
		rows = append(rows, []string{key, value})
	}

	cmd.Println(titleStyle.Render("Current Settings"))
	cmd.Println(mutedStyle.Render(settingsService.Path()))
	cmd.Println()
	cmd.Print(renderTable([]string{"KEY", "VALUE"}, rows))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	shown, err := settingsService.Value(settings, key)
	if err != nil {
		return err
	}
	cmd.Printf("%s = %s\n", key, shown)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	cmd.Println(settingsService.Path())
	return nil
}
