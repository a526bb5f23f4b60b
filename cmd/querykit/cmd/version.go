package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/querykit/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build date of querykit.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := version.Get()
		out := cmd.OutOrStdout()
		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintf(out, "querykit %s\n", info.Short())
		if info.BuildTime != "" {
			fmt.Fprintf(out, "  Built:      %s\n", info.BuildTime)
		}
		fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
		fmt.Fprintf(out, "  OS/Arch:    %s\n", info.Platform)
		return nil
	},
}

func init() {
	// Version needs no configuration.
	versionCmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(versionCmd)
}
