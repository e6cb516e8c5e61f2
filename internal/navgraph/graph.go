// Package navgraph maintains the hub-and-spoke navigation graph shared by a
// family of guide pages and keeps it consistent with the iconRow blocks that
// reference it.
package navgraph

import (
	"encoding/json"
	"fmt"
)

// HubID is the reserved node id of the hub. The hub represents the owning
// page itself, is never user-deletable, and always targets the owner's slug.
const HubID = "entry"

// Node positions are percentages clamped to an interior rectangle so nodes
// stay draggable inside the map viewport.
const (
	MinPos = 5.0
	MaxPos = 95.0
)

// Node is one point on the navigation map.
type Node struct {
	ID         string  `json:"id"`
	Title      string  `json:"title,omitempty"`
	Icon       string  `json:"icon,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	TargetSlug string  `json:"targetSlug,omitempty"`
}

// Edge is a directed hub→spoke connection. The edge set is fully derived from
// iconRow nodeId references and is never hand-edited.
type Edge struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the navigation map stored on exactly one page's theme.
type Graph struct {
	Enabled bool   `json:"enabled"`
	Nodes   []Node `json:"nodes,omitempty"`
	Edges   []Edge `json:"edges,omitempty"`
}

// Theme is the styling envelope persisted alongside the blocks. Only the
// embedded navigation graph matters to this package; the rest is passed
// through to renderers untouched.
type Theme struct {
	Preset     string `json:"preset,omitempty"`
	Accent     string `json:"accent,omitempty"`
	Background string `json:"background,omitempty"`
	Font       string `json:"font,omitempty"`
	Navigation Graph  `json:"navigation"`
}

// DecodeTheme reconstructs a theme from arbitrary persisted data. Like the
// block normalizer it never fails: malformed fields default silently.
func DecodeTheme(raw json.RawMessage) Theme {
	var m map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	t := Theme{
		Preset:     asString(m["preset"]),
		Accent:     asString(m["accent"]),
		Background: asString(m["background"]),
		Font:       asString(m["font"]),
	}
	if nav, ok := m["navigation"].(map[string]any); ok {
		t.Navigation = decodeGraph(nav)
	}
	return t
}

// EncodeTheme serializes a theme for persistence.
func EncodeTheme(t Theme) json.RawMessage {
	data, err := json.Marshal(t)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func decodeGraph(m map[string]any) Graph {
	g := Graph{Enabled: asBool(m["enabled"])}
	if nodes, ok := m["nodes"].([]any); ok {
		for i, el := range nodes {
			nm, ok := el.(map[string]any)
			if !ok {
				continue
			}
			n := Node{
				ID:         asString(nm["id"]),
				Title:      asString(nm["title"]),
				Icon:       asString(nm["icon"]),
				X:          clamp(asFloat(nm["x"])),
				Y:          clamp(asFloat(nm["y"])),
				TargetSlug: asString(nm["targetSlug"]),
			}
			if n.ID == "" {
				n.ID = fmt.Sprintf("nav-%d", i)
			}
			g.Nodes = append(g.Nodes, n)
		}
	}
	if edges, ok := m["edges"].([]any); ok {
		for _, el := range edges {
			em, ok := el.(map[string]any)
			if !ok {
				continue
			}
			e := Edge{
				ID:   asString(em["id"]),
				From: asString(em["from"]),
				To:   asString(em["to"]),
			}
			if e.From == "" || e.To == "" {
				continue
			}
			g.Edges = append(g.Edges, e)
		}
	}
	return g
}

// FindNode returns the node with the given id.
func (g Graph) FindNode(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Hub returns the hub node if present.
func (g Graph) Hub() (Node, bool) {
	return g.FindNode(HubID)
}

// SpokeSlugs lists the target slugs of all spoke nodes.
func (g Graph) SpokeSlugs() []string {
	slugs := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == HubID || n.TargetSlug == "" {
			continue
		}
		slugs = append(slugs, n.TargetSlug)
	}
	return slugs
}

func clamp(v float64) float64 {
	if v < MinPos {
		return MinPos
	}
	if v > MaxPos {
		return MaxPos
	}
	return v
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
