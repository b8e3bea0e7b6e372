package cli

import (
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if len(configuredSources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	for _, source := range configuredSources {
		cmd.Printf("%s\t%s\t%s", source.ID, source.Provider, source.Path)
		if source.Pattern != "" {
			cmd.Printf("\t(%s)", source.Pattern)
		}
		cmd.Println()
	}
	return nil
}
