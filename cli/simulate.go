package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"adventure-editor/adventure"
	"adventure-editor/simulator"
)

func init() {
	cmd := &cobra.Command{
		Use:   "simulate <file.json> [node-id...]",
		Short: "Simulate a path through an adventure file, or suggest paths",
		Example: `  adventure-editor simulate story.json 0 3 7
  adventure-editor simulate story.json --suggest --depth 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSimulate,
	}

	cmd.Flags().Bool("suggest", false, "Suggest paths instead of simulating one")
	cmd.Flags().Int("start", -1, "Start node for suggestions (default: the root)")
	cmd.Flags().Int("depth", 5, "Maximum suggestion depth (1-10)")

	RootCmd.AddCommand(cmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read adventure: %w", err)
	}
	adv, err := adventure.ParseAdventure(data)
	if err != nil {
		return err
	}
	sim := simulator.NewPathSimulator(adv)

	suggest, _ := cmd.Flags().GetBool("suggest")
	if suggest {
		start, _ := cmd.Flags().GetInt("start")
		depth, _ := cmd.Flags().GetInt("depth")
		if depth < 1 || depth > 10 {
			return fmt.Errorf("depth %d out of range 1-10", depth)
		}
		if start < 0 {
			root, ok := adventure.RootNode(adv.Nodes)
			if !ok {
				return fmt.Errorf("adventure %q has no nodes", adv.Title)
			}
			start = root.NodeID
		}
		return printJSON(cmd, map[string]interface{}{
			"start_node_id": start,
			"max_depth":     depth,
			"paths":         sim.GetSuggestedPaths(start, depth),
		})
	}

	path, err := parsePath(args[1:])
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return fmt.Errorf("no path given; pass node ids or --suggest")
	}
	result := sim.SimulatePath(path)
	if err := printJSON(cmd, result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("path failed with %d error(s)", len(result.Errors))
	}
	return nil
}

func parsePath(args []string) ([]int, error) {
	path := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("node id %q is not a number", a)
		}
		path = append(path, id)
	}
	return path, nil
}
