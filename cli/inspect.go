package cli

import (
	"github.com/spf13/cobra"

	"adventure-editor/adventure"
	"adventure-editor/fixtures"
	"adventure-editor/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "inspect [edit-slug]",
		Short: "List stored adventures, or check one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInspect,
	}

	RootCmd.AddCommand(cmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 0 {
		list, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		if list == nil {
			list = []store.Summary{}
		}
		return printJSON(cmd, list)
	}

	dto, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"slug":         dto.Slug,
		"view_slug":    dto.ViewSlug,
		"edit_version": dto.EditVersion,
		"locked":       dto.Locked,
		"updated_at":   dto.UpdatedAt,
		"report":       fixtures.Inspect(adventure.MapAdventureDTO(dto)),
	})
}
