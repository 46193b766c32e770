package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"adventure-editor/fixtures"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate the adventure JSON fixtures of a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}

	cmd.Flags().Bool("write", false, "Write a "+fixtures.ResultSuffix+" report next to each fixture")

	RootCmd.AddCommand(cmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := "fixtures"
	if len(args) == 1 {
		dir = args[0]
	}
	write, _ := cmd.Flags().GetBool("write")

	summary, _, err := fixtures.NewRunner(dir, cmd.OutOrStdout(), write).Run()
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d fixtures failed", summary.Failed, summary.TotalFiles)
	}
	return nil
}
