package simulator

import (
	"fmt"

	"adventure-editor/adventure"
	"adventure-editor/player"
)

// SuggestionLimit caps the number of paths GetSuggestedPaths returns.
const SuggestionLimit = 10

// PathSimulator walks node paths through an adventure with the player rules.
type PathSimulator struct {
	adv adventure.Adventure
	idx adventure.Index
}

// StepResult is the outcome of one node of a simulated path.
type StepResult struct {
	NodeID         int             `json:"node_id"`
	NodeTitle      string          `json:"node_title"`
	StepIndex      int             `json:"step_index"`
	NodeKind       player.NodeKind `json:"node_kind"`
	ViaLinkID      *int            `json:"via_link_id,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	AvailableLinks []int           `json:"available_links"`
	Progress       int             `json:"progress"`
}

// SimulationResult is the outcome of a whole path.
type SimulationResult struct {
	Success       bool         `json:"success"`
	Path          []int        `json:"path"`
	Steps         []StepResult `json:"steps"`
	Visited       []int        `json:"visited"`
	Errors        []string     `json:"errors,omitempty"`
	TotalWarnings int          `json:"total_warnings"`
}

// NewPathSimulator creates a simulator over adv.
func NewPathSimulator(adv adventure.Adventure) *PathSimulator {
	return &PathSimulator{adv: adv, idx: adventure.BuildIndex(adv)}
}

// linkBetween returns the navigation link leading from one node to the next.
func (ps *PathSimulator) linkBetween(from, to int) (adventure.Link, bool) {
	for _, l := range player.NavigationLinks(from, ps.adv.Links) {
		if player.DestinationOf(l, from) == to {
			return l, true
		}
	}
	return adventure.Link{}, false
}

// ValidatePath checks that every node exists and that each node links to
// the next one.
func (ps *PathSimulator) ValidatePath(path []int) []string {
	errors := []string{}
	if len(path) == 0 {
		return append(errors, "path is empty")
	}

	for i, id := range path {
		if _, exists := ps.idx.Nodes[id]; !exists {
			errors = append(errors, fmt.Sprintf("step %d: node #%d does not exist", i+1, id))
		}
	}

	for i := 0; i < len(path)-1; i++ {
		current, next := path[i], path[i+1]
		_, currentExists := ps.idx.Nodes[current]
		_, nextExists := ps.idx.Nodes[next]
		if !currentExists || !nextExists {
			continue
		}
		if _, ok := ps.linkBetween(current, next); !ok {
			errors = append(errors, fmt.Sprintf(
				"step %d→%d: node #%d has no link to #%d, available: %v",
				i+1, i+2, current, next, ps.targets(current),
			))
		}
	}
	return errors
}

func (ps *PathSimulator) targets(nodeID int) []int {
	out := []int{}
	for _, l := range player.NavigationLinks(nodeID, ps.adv.Links) {
		out = append(out, player.DestinationOf(l, nodeID))
	}
	return out
}

// SimulatePath plays path as a reader would, clicking the link to each next
// node, and reports what the player would do differently.
func (ps *PathSimulator) SimulatePath(path []int) *SimulationResult {
	result := &SimulationResult{
		Success: true,
		Path:    path,
		Steps:   []StepResult{},
		Visited: []int{},
		Errors:  []string{},
	}

	if validationErrors := ps.ValidatePath(path); len(validationErrors) > 0 {
		result.Success = false
		result.Errors = validationErrors
		return result
	}

	ctx := player.NewContext(ps.idx, nil)
	var via *int
	for i, nodeID := range path {
		node := ps.idx.Nodes[nodeID]
		ctx.Visited[nodeID] = true
		ctx.CurrentNodeID = nodeID

		step := StepResult{
			NodeID:    nodeID,
			NodeTitle: node.Title,
			StepIndex: i + 1,
			NodeKind:  player.ResolveNodeKind(&node),
			ViaLinkID: via,
			Warnings:  ps.enterWarnings(nodeID, ctx),
		}
		nav := player.BuildNavigation(nodeID, ps.adv.Links, ctx, player.NavigationOverrides{})
		step.AvailableLinks = []int{}
		for _, b := range nav.Buttons {
			if !b.Current {
				step.AvailableLinks = append(step.AvailableLinks, b.LinkID)
			}
		}

		via = nil
		if i < len(path)-1 {
			link, _ := ps.linkBetween(nodeID, path[i+1])
			step.Warnings = append(step.Warnings, ps.clickWarnings(link, nav, ctx)...)
			id := link.LinkID
			via = &id
		} else if len(step.AvailableLinks) == 0 && step.NodeKind != player.KindRandom {
			step.Warnings = append(step.Warnings, "path ends on a node without choices")
		}
		step.Progress = progress(len(ctx.Visited), len(ps.adv.Nodes))

		result.TotalWarnings += len(step.Warnings)
		result.Steps = append(result.Steps, step)
	}

	for _, n := range ps.adv.Nodes {
		if ctx.Visited[n.NodeID] {
			result.Visited = append(result.Visited, n.NodeID)
		}
	}
	return result
}

// enterWarnings reports what landing on nodeID does besides showing it.
func (ps *PathSimulator) enterWarnings(nodeID int, ctx *player.Context) []string {
	warnings := []string{}
	d := player.DecideOnEnterNode(nodeID, ctx)
	switch d.Type {
	case player.EnterAuto:
		warnings = append(warnings, fmt.Sprintf("random node: the player picks the next node itself (e.g. #%d)", d.TargetNodeID))
	case player.EnterError:
		warnings = append(warnings, fmt.Sprintf("%s: %s", d.Error.Title, d.Error.Description))
	}
	return warnings
}

// clickWarnings reports conditions and special targets on the chosen link.
func (ps *PathSimulator) clickWarnings(link adventure.Link, nav player.NavigationModel, ctx *player.Context) []string {
	warnings := []string{}

	shown := false
	for _, b := range nav.Buttons {
		if b.LinkID != link.LinkID {
			continue
		}
		shown = true
		if b.Conditioned {
			warnings = append(warnings, fmt.Sprintf("link %d is conditioned and shown %s", link.LinkID, b.ConditionedMode))
		}
	}
	if !shown && nav.Config.Style != player.NavNoButtons {
		warnings = append(warnings, fmt.Sprintf("link %d is not offered to the player here", link.LinkID))
	}

	d := player.DecideOnClick(link.LinkID, ctx)
	switch d.Type {
	case player.ClickOpenReference:
		warnings = append(warnings, fmt.Sprintf("link %d opens %s instead of moving", link.LinkID, d.URL))
	case player.ClickError:
		warnings = append(warnings, fmt.Sprintf("link %d: %s", link.LinkID, d.Error.Title))
	}
	return warnings
}

func progress(visited, total int) int {
	if total == 0 {
		return 0
	}
	return min(100, (visited*100+total/2)/total)
}

// GetSuggestedPaths lists up to SuggestionLimit paths from start, breadth
// first. A path stops at maxDepth nodes, at a node without visible choices
// or before revisiting a node. Conditions are evaluated against the nodes
// already on the path.
func (ps *PathSimulator) GetSuggestedPaths(start int, maxDepth int) [][]int {
	paths := [][]int{}
	if _, ok := ps.idx.Nodes[start]; !ok || maxDepth < 1 {
		return paths
	}

	queue := [][]int{{start}}
	for len(queue) > 0 && len(paths) < SuggestionLimit {
		currentPath := queue[0]
		queue = queue[1:]

		if len(currentPath) >= maxDepth {
			paths = append(paths, currentPath)
			continue
		}

		last := currentPath[len(currentPath)-1]
		ctx := player.NewContext(ps.idx, nil)
		for _, id := range currentPath {
			ctx.Visited[id] = true
		}
		ctx.CurrentNodeID = last

		var next []int
		for _, b := range player.BuildNavigation(last, ps.adv.Links, ctx, player.NavigationOverrides{}).Buttons {
			if b.Current || b.Broken || onPath(currentPath, b.TargetNodeID) {
				continue
			}
			next = append(next, b.TargetNodeID)
		}

		if len(next) == 0 {
			paths = append(paths, currentPath)
			continue
		}
		for _, target := range next {
			newPath := make([]int, len(currentPath), len(currentPath)+1)
			copy(newPath, currentPath)
			queue = append(queue, append(newPath, target))
		}
	}
	return paths
}

func onPath(path []int, id int) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}
