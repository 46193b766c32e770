package player

import (
	"errors"
	"maps"
	"math"
	"slices"

	"adventure-editor/adventure"
)

// ErrNoNodes is returned when starting an adventure without nodes.
var ErrNoNodes = errors.New("adventure has no nodes")

// Step is one entry of the playthrough history.
type Step struct {
	NodeID       int  `json:"nodeId"`
	ChosenLinkID *int `json:"chosenLinkId,omitempty"`
}

// Playthrough is the state of one reader going through an adventure.
// It is not safe for concurrent use.
type Playthrough struct {
	adv     adventure.Adventure
	idx     adventure.Index
	ctx     *Context
	root    int
	history []Step
	started bool
}

// NewPlaythrough prepares a playthrough of adv. Call Start before playing.
func NewPlaythrough(adv adventure.Adventure) *Playthrough {
	idx := adventure.BuildIndex(adv)
	return &Playthrough{adv: adv, idx: idx, ctx: NewContext(idx, nil), root: NoNode}
}

// Context exposes the decision context; its random source may be replaced.
func (p *Playthrough) Context() *Context { return p.ctx }

// Start places the reader on the start node: the root, otherwise the first
// node. Starting twice does nothing.
func (p *Playthrough) Start() error {
	if p.started {
		return nil
	}
	root, ok := adventure.RootNode(p.adv.Nodes)
	if !ok {
		return ErrNoNodes
	}
	p.root = root.NodeID
	p.reset()
	p.started = true
	return nil
}

func (p *Playthrough) reset() {
	p.history = []Step{{NodeID: p.root}}
	p.ctx.Visited = map[int]bool{p.root: true}
	p.ctx.CurrentNodeID = p.root
}

// CurrentNodeID returns the node being read, or NoNode before Start.
func (p *Playthrough) CurrentNodeID() int {
	if !p.started {
		return NoNode
	}
	return p.ctx.CurrentNodeID
}

// CurrentNode returns the node being read.
func (p *Playthrough) CurrentNode() (adventure.Node, bool) {
	n, ok := p.idx.Nodes[p.CurrentNodeID()]
	return n, ok
}

// Choose follows linkID from the current node. A move is applied, then
// random nodes reached by it are resolved; references and errors leave the
// reader in place. The second result tells where the reader landed.
func (p *Playthrough) Choose(linkID int) (ClickDecision, *EnterDecision) {
	if !p.started {
		return clickError("Not started", "The adventure has not been started."), nil
	}
	d := DecideOnClick(linkID, p.ctx)
	if d.Type != ClickMove {
		return d, nil
	}
	chosen := linkID
	p.visit(d.NodeID, &chosen)
	enter := p.enter(d.NodeID)
	return d, &enter
}

// Enter moves straight to nodeID, e.g. from a menu shortcut, and resolves
// it like a chosen link would.
func (p *Playthrough) Enter(nodeID int) EnterDecision {
	if _, ok := p.idx.Nodes[nodeID]; !ok || !p.started {
		return DecideOnEnterNode(nodeID, p.ctx)
	}
	p.visit(nodeID, nil)
	return p.enter(nodeID)
}

func (p *Playthrough) enter(nodeID int) EnterDecision {
	d := DecideOnEnterNode(nodeID, p.ctx)
	if d.Type == EnterAuto {
		via := d.ViaLinkID
		p.visit(d.TargetNodeID, &via)
	}
	return d
}

func (p *Playthrough) visit(nodeID int, via *int) {
	p.history = append(p.history, Step{NodeID: nodeID, ChosenLinkID: via})
	p.ctx.Visited[nodeID] = true
	p.ctx.CurrentNodeID = nodeID
}

// Back returns to the previous step. Visited nodes stay visited.
func (p *Playthrough) Back() bool {
	if len(p.history) <= 1 {
		return false
	}
	p.history = p.history[:len(p.history)-1]
	p.ctx.CurrentNodeID = p.history[len(p.history)-1].NodeID
	return true
}

// Home restarts from the start node and forgets visits.
func (p *Playthrough) Home() bool {
	if !p.started {
		return false
	}
	p.reset()
	return true
}

// History returns a copy of the steps taken.
func (p *Playthrough) History() []Step { return slices.Clone(p.history) }

// Visited returns the visited node ids, ascending.
func (p *Playthrough) Visited() []int {
	return slices.Sorted(maps.Keys(p.ctx.Visited))
}

// VisitedCount returns the number of distinct nodes reached.
func (p *Playthrough) VisitedCount() int { return len(p.ctx.Visited) }

// ProgressPercent returns the share of nodes visited, rounded, at most 100.
func (p *Playthrough) ProgressPercent() int {
	total := len(p.adv.Nodes)
	if total == 0 {
		return 0
	}
	pct := int(math.Round(float64(len(p.ctx.Visited)) / float64(total) * 100))
	return min(pct, 100)
}

// Navigation returns the choices offered on the current node.
func (p *Playthrough) Navigation(o NavigationOverrides) NavigationModel {
	return BuildNavigation(p.CurrentNodeID(), p.adv.Links, p.ctx, o)
}
