package navgraph

import (
	"guidepost/api/internal/block"
)

// ReferencedNodeIDs collects every nodeId mentioned by an iconRow sub-item.
func ReferencedNodeIDs(blocks []block.Block) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, b := range blocks {
		if b.Type != block.TypeIconRow {
			continue
		}
		for _, item := range b.IconItems {
			if item.NodeID != "" {
				refs[item.NodeID] = struct{}{}
			}
		}
	}
	return refs
}

// Sync recomputes the graph to a fixed point after a block mutation. The hub
// is located or synthesized and forced to the owner's current title and slug;
// spoke nodes are kept untouched (position and title edits are manual); the
// edge set is rebuilt from scratch as hub→spoke for every node still
// referenced by an iconRow item. Running Sync twice yields the same graph.
func Sync(g Graph, blocks []block.Block, ownerTitle, ownerSlug string) Graph {
	next := Graph{Enabled: g.Enabled}

	hub, ok := g.Hub()
	if !ok {
		hub = Node{ID: HubID, Icon: "home", X: 50, Y: 15}
	}
	hub.Title = ownerTitle
	hub.TargetSlug = ownerSlug
	hub.X = clamp(hub.X)
	hub.Y = clamp(hub.Y)
	next.Nodes = append(next.Nodes, hub)

	for _, n := range g.Nodes {
		if n.ID == HubID {
			continue
		}
		n.X = clamp(n.X)
		n.Y = clamp(n.Y)
		next.Nodes = append(next.Nodes, n)
	}

	refs := ReferencedNodeIDs(blocks)
	for _, n := range next.Nodes {
		if n.ID == HubID {
			continue
		}
		if _, referenced := refs[n.ID]; !referenced {
			continue
		}
		next.Edges = append(next.Edges, Edge{
			ID:   "edge-" + n.ID,
			From: HubID,
			To:   n.ID,
		})
	}
	return next
}

// DeleteNode removes a spoke node and, in the same pass, clears every iconRow
// sub-item that pointed at it so no dangling reference survives. The hub
// cannot be deleted. The returned blocks share no item slices with the input.
// The boolean reports whether the node existed.
func DeleteNode(g Graph, blocks []block.Block, nodeID string) (Graph, []block.Block, bool) {
	if nodeID == HubID {
		return g, blocks, false
	}
	if _, ok := g.FindNode(nodeID); !ok {
		return g, blocks, false
	}

	pruned := Graph{Enabled: g.Enabled}
	for _, n := range g.Nodes {
		if n.ID == nodeID {
			continue
		}
		pruned.Nodes = append(pruned.Nodes, n)
	}

	cleared := ClearNodeRefs(blocks, nodeID)

	hub, _ := pruned.Hub()
	return Sync(pruned, cleared, hub.Title, hub.TargetSlug), cleared, true
}

// ClearNodeRefs returns a copy of blocks with every iconRow item that
// referenced nodeID reset to an unlinked item.
func ClearNodeRefs(blocks []block.Block, nodeID string) []block.Block {
	out := make([]block.Block, len(blocks))
	copy(out, blocks)
	for i, b := range out {
		if b.Type != block.TypeIconRow {
			continue
		}
		items := make([]block.IconRowItem, len(b.IconItems))
		copy(items, b.IconItems)
		for j, item := range items {
			if item.NodeID == nodeID {
				items[j].NodeID = ""
				items[j].Link = ""
			}
		}
		out[i].IconItems = items
	}
	return out
}

// ApplyNodeEdits merges manual node edits (position, title, icon, target)
// into the graph. Unknown ids are appended as new spokes; the hub accepts
// position and icon edits only, its title and target stay pinned to the
// owner. Edges are untouched here; callers run Sync afterwards.
func ApplyNodeEdits(g Graph, edits []Node) Graph {
	next := Graph{Enabled: g.Enabled, Edges: g.Edges}
	next.Nodes = append(next.Nodes, g.Nodes...)

	for _, edit := range edits {
		if edit.ID == "" {
			continue
		}
		edit.X = clamp(edit.X)
		edit.Y = clamp(edit.Y)

		idx := -1
		for i, n := range next.Nodes {
			if n.ID == edit.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			if edit.ID == HubID {
				continue
			}
			next.Nodes = append(next.Nodes, edit)
			continue
		}
		if edit.ID == HubID {
			next.Nodes[idx].X = edit.X
			next.Nodes[idx].Y = edit.Y
			if edit.Icon != "" {
				next.Nodes[idx].Icon = edit.Icon
			}
			continue
		}
		next.Nodes[idx] = edit
	}
	return next
}

// SiblingGraph pairs a page with the graph stored on its theme, for ownership
// resolution.
type SiblingGraph struct {
	PageID string
	Slug   string
	Graph  Graph
}

// ResolveOwner decides which page's theme holds the graph this page should
// display. A page with its own enabled graph owns it. Otherwise the siblings
// are scanned for an enabled graph whose spokes target this page's slug; the
// first match makes this page a follower reading through the owner's graph.
// With no match the page becomes its own (possibly empty) owner.
func ResolveOwner(pageID, slug string, own Graph, siblings []SiblingGraph) (ownerID string, g Graph, follower bool) {
	if own.Enabled {
		return pageID, own, false
	}
	for _, sib := range siblings {
		if sib.PageID == pageID || !sib.Graph.Enabled {
			continue
		}
		for _, target := range sib.Graph.SpokeSlugs() {
			if target == slug {
				return sib.PageID, sib.Graph, true
			}
		}
	}
	return pageID, own, false
}
