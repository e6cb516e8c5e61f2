// Package publish holds the static checks gating the draft→published
// transition.
package publish

import (
	"fmt"
	"strings"
	"time"

	"guidepost/api/internal/block"
	"guidepost/api/internal/navgraph"
)

// Level separates blocking problems from advisories.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Issue is one finding of the publish check.
type Issue struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Input is everything the validator inspects about a page.
type Input struct {
	Title       string
	Blocks      []block.Block
	PublishAt   *time.Time
	UnpublishAt *time.Time
}

// Validate runs every check and returns the ordered issue list. Checks are
// independent: one failure never hides another. siblingStatus maps the slugs
// of all known pages in the tenant to their status so internal links can be
// resolved.
func Validate(in Input, g navgraph.Graph, siblingStatus map[string]string) []Issue {
	var issues []Issue

	if strings.TrimSpace(in.Title) == "" {
		issues = append(issues, Issue{LevelError, "page title is empty"})
	}

	hasContent := false
	for _, b := range in.Blocks {
		if block.HasContent(b) {
			hasContent = true
			break
		}
	}
	if !hasContent {
		issues = append(issues, Issue{LevelError, "page has no content blocks"})
	}

	if in.PublishAt != nil && in.UnpublishAt != nil && !in.PublishAt.Before(*in.UnpublishAt) {
		issues = append(issues, Issue{LevelError, "publish time must be before unpublish time"})
	}

	issues = append(issues, checkImages(in.Blocks)...)
	issues = append(issues, checkLinks(in.Blocks, siblingStatus)...)
	issues = append(issues, checkGraph(g, siblingStatus)...)

	return issues
}

// HasErrors reports whether any issue blocks publishing.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Level == LevelError {
			return true
		}
	}
	return false
}

func checkImages(blocks []block.Block) []Issue {
	var issues []Issue
	for _, b := range blocks {
		switch b.Type {
		case block.TypeImage:
			if strings.TrimSpace(b.URL) == "" {
				issues = append(issues, Issue{LevelError, fmt.Sprintf("image block %s has no image", b.ID)})
			}
		case block.TypeGallery:
			for _, item := range b.GalleryItems {
				if strings.TrimSpace(item.URL) == "" {
					issues = append(issues, Issue{LevelError, fmt.Sprintf("gallery block %s has an empty image slot", b.ID)})
				}
			}
		}
	}
	return issues
}

func checkLinks(blocks []block.Block, siblingStatus map[string]string) []Issue {
	var issues []Issue
	for _, b := range blocks {
		switch b.Type {
		case block.TypeCTA:
			issues = append(issues, checkLink(b.Link, "button "+b.ID, siblingStatus)...)
		case block.TypeIconRow:
			for _, item := range b.IconItems {
				issues = append(issues, checkLink(item.Link, "icon "+item.ID, siblingStatus)...)
			}
		}
	}
	return issues
}

func checkLink(link, where string, siblingStatus map[string]string) []Issue {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil
	}
	if block.IsInternalLink(link) {
		slug := block.InternalSlug(link)
		status, known := siblingStatus[slug]
		if !known {
			return []Issue{{LevelError, fmt.Sprintf("%s links to unknown page %q", where, slug)}}
		}
		if status != "published" {
			return []Issue{{LevelWarning, fmt.Sprintf("%s links to unpublished page %q", where, slug)}}
		}
		return nil
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return []Issue{{LevelWarning, fmt.Sprintf("%s has a link without http(s):// prefix", where)}}
	}
	return nil
}

func checkGraph(g navgraph.Graph, siblingStatus map[string]string) []Issue {
	if !g.Enabled {
		return nil
	}
	var issues []Issue
	for _, n := range g.Nodes {
		if n.ID == navgraph.HubID || n.TargetSlug == "" {
			continue
		}
		status, known := siblingStatus[n.TargetSlug]
		if !known {
			issues = append(issues, Issue{LevelError, fmt.Sprintf("map node %q targets unknown page %q", n.Title, n.TargetSlug)})
			continue
		}
		if status != "published" {
			issues = append(issues, Issue{LevelWarning, fmt.Sprintf("map node %q targets unpublished page %q", n.Title, n.TargetSlug)})
		}
	}
	return issues
}
