package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"guidepost/api/internal/logger"
	"guidepost/api/internal/navgraph"
	"guidepost/api/internal/util"
)

// TrashItem identifies one page pending deletion.
type TrashItem struct {
	TenantID string
	PageID   string
	Slug     string
}

type trashBatch struct {
	items []TrashItem
	timer *time.Timer
}

// Trash implements soft delete with an undo window. Trashed pages disappear
// from every surface immediately but the destructive store delete runs only
// after the grace period, and Undo before that cancels it entirely. Exactly
// one finalize call happens per batch.
type Trash struct {
	mu       sync.Mutex
	grace    time.Duration
	batches  map[string]*trashBatch
	hidden   map[string]string // pageID -> batchID
	finalize func(items []TrashItem)
}

func NewTrash(grace time.Duration, finalize func(items []TrashItem)) *Trash {
	return &Trash{
		grace:    grace,
		batches:  make(map[string]*trashBatch),
		hidden:   make(map[string]string),
		finalize: finalize,
	}
}

// Add hides the items and schedules their finalization. Items already hidden
// by another batch are skipped so a page can never be finalized twice.
func (t *Trash) Add(items []TrashItem) (string, []TrashItem) {
	t.mu.Lock()
	defer t.mu.Unlock()

	accepted := make([]TrashItem, 0, len(items))
	for _, item := range items {
		if _, already := t.hidden[item.PageID]; already {
			continue
		}
		accepted = append(accepted, item)
	}
	if len(accepted) == 0 {
		return "", nil
	}

	batchID := util.NewID("trash")
	batch := &trashBatch{items: accepted}
	batch.timer = time.AfterFunc(t.grace, func() { t.fire(batchID) })
	t.batches[batchID] = batch
	for _, item := range accepted {
		t.hidden[item.PageID] = batchID
	}
	return batchID, accepted
}

// Undo cancels a pending batch and reveals its pages again. Returns false if
// the batch already finalized or never existed.
func (t *Trash) Undo(batchID string) ([]TrashItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch, ok := t.batches[batchID]
	if !ok {
		return nil, false
	}
	batch.timer.Stop()
	delete(t.batches, batchID)
	for _, item := range batch.items {
		delete(t.hidden, item.PageID)
	}
	return batch.items, true
}

// Hidden reports whether a page is inside an undo window.
func (t *Trash) Hidden(pageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, hidden := t.hidden[pageID]
	return hidden
}

func (t *Trash) fire(batchID string) {
	t.mu.Lock()
	batch, ok := t.batches[batchID]
	if !ok {
		// Undo won the race.
		t.mu.Unlock()
		return
	}
	delete(t.batches, batchID)
	for _, item := range batch.items {
		delete(t.hidden, item.PageID)
	}
	t.mu.Unlock()

	t.finalize(batch.items)
}

// TrashResult tells the client how to undo.
type TrashResult struct {
	BatchID string   `json:"batchId"`
	PageIDs []string `json:"pageIds"`
}

// TrashPages soft-deletes the given pages. With withSpokes, a page that owns
// an enabled navigation graph drags the pages its spokes target into the same
// batch, so one undo restores the whole family.
func (s *Service) TrashPages(ctx context.Context, session Session, ids []string, withSpokes bool) (TrashResult, error) {
	if len(ids) == 0 {
		return TrashResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "no page ids given", nil)
	}

	pages, err := s.store.ListPages(ctx, session.TenantID)
	if err != nil {
		return TrashResult{}, err
	}
	byID := make(map[string]int, len(pages))
	bySlug := make(map[string]int, len(pages))
	for i, p := range pages {
		byID[p.ID] = i
		bySlug[p.Slug] = i
	}

	wanted := make(map[string]struct{})
	for _, id := range ids {
		idx, ok := byID[id]
		if !ok {
			return TrashResult{}, domainError(http.StatusNotFound, "NOT_FOUND", "Page not found: "+id, nil)
		}
		wanted[id] = struct{}{}

		if !withSpokes {
			continue
		}
		graph := navgraph.DecodeTheme(pages[idx].Theme).Navigation
		if !graph.Enabled {
			continue
		}
		for _, slug := range graph.SpokeSlugs() {
			if spokeIdx, ok := bySlug[slug]; ok {
				wanted[pages[spokeIdx].ID] = struct{}{}
			}
		}
	}

	items := make([]TrashItem, 0, len(wanted))
	for _, p := range pages {
		if _, ok := wanted[p.ID]; !ok {
			continue
		}
		items = append(items, TrashItem{TenantID: session.TenantID, PageID: p.ID, Slug: p.Slug})
	}

	batchID, accepted := s.trash.Add(items)
	if batchID == "" {
		return TrashResult{}, domainError(http.StatusConflict, "CONFLICT", "Pages are already in the trash", nil)
	}

	result := TrashResult{BatchID: batchID, PageIDs: make([]string, 0, len(accepted))}
	for _, item := range accepted {
		result.PageIDs = append(result.PageIDs, item.PageID)
		s.invalidate(ctx, item.Slug)
	}
	return result, nil
}

// UndoTrash restores a batch if its grace window has not elapsed.
func (s *Service) UndoTrash(ctx context.Context, session Session, batchID string) ([]string, error) {
	items, ok := s.trash.Undo(batchID)
	if !ok {
		return nil, domainError(http.StatusGone, "UNDO_EXPIRED", "Undo window has passed", nil)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.PageID)
		s.invalidate(ctx, item.Slug)
	}
	return ids, nil
}

// finalizeTrash runs once per batch after the grace window. Each page gets
// exactly one store delete; a failed delete leaves the page visible again and
// surfaces a notice on the next page list.
func (s *Service) finalizeTrash(items []TrashItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, item := range items {
		if err := s.store.DeletePage(ctx, item.TenantID, item.PageID); err != nil {
			logger.Log.Error("trash finalize failed",
				zap.String("page_id", item.PageID), zap.Error(err))
			s.addNotice(item.TenantID, fmt.Sprintf("Could not delete page %s, it has been restored", item.PageID))
			continue
		}
		if s.revisions != nil {
			if err := s.revisions.Remove(item.PageID); err != nil {
				logger.Log.Warn("revision cleanup failed", zap.String("page_id", item.PageID), zap.Error(err))
			}
		}
		if s.search != nil {
			s.search.DeletePage(item.PageID)
		}
		s.invalidate(ctx, item.Slug)
	}
}
