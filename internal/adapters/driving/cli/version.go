package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version number",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sercha-ask version %s (%s %s/%s)\n",
			version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version")
	rootCmd.AddCommand(versionCmd)
}
