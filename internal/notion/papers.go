package notion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/csheth/paperclip/internal/session"
)

// Subpage titles under every paper page.
const (
	HighlightsTitle = "Highlights"
	NotesTitle      = "Notes"
)

// PageAPI is the subset of Client the paper organizer needs.
type PageAPI interface {
	CreatePage(ctx context.Context, parentID, title string) (PageRef, error)
	ListChildren(ctx context.Context, pageID string) ([]PageRef, error)
	Search(ctx context.Context, query string) ([]PageRef, error)
}

// Papers lays papers out under one root page: a page per paper with a
// Highlights and a Notes child.
type Papers struct {
	api    PageAPI
	rootID string
}

func NewPapers(api PageAPI, rootID string) *Papers {
	return &Papers{api: api, rootID: rootID}
}

// ListPapers returns every paper page under the root with its subpages
// resolved. Missing subpages leave the corresponding id empty.
func (p *Papers) ListPapers(ctx context.Context) ([]session.PaperInfo, error) {
	if p.rootID == "" {
		return nil, errors.New("root page id is not configured")
	}
	children, err := p.api.ListChildren(ctx, p.rootID)
	if err != nil {
		return nil, err
	}
	papers := make([]session.PaperInfo, 0, len(children))
	for _, child := range children {
		refs, err := p.resolve(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		papers = append(papers, paperInfo(child, refs))
	}
	log.Printf("[notion] listed %d papers under %s", len(papers), p.rootID)
	return papers, nil
}

// SearchPapers returns the root's paper pages whose title matches query.
// Subpages are not resolved; EnsurePaper completes them when reading starts.
func (p *Papers) SearchPapers(ctx context.Context, query string) ([]session.PaperInfo, error) {
	pages, err := p.api.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	var out []session.PaperInfo
	for _, page := range pages {
		if !sameID(page.ParentID, p.rootID) {
			continue
		}
		out = append(out, paperInfo(page, &session.PaperRefs{PageID: page.ID}))
	}
	return out, nil
}

// EnsurePaper returns the pages for name, reusing a root child with the same
// title and creating whatever is missing.
func (p *Papers) EnsurePaper(ctx context.Context, name string) (session.PaperInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return session.PaperInfo{}, errors.New("paper name is required")
	}
	if p.rootID == "" {
		return session.PaperInfo{}, errors.New("root page id is not configured")
	}
	children, err := p.api.ListChildren(ctx, p.rootID)
	if err != nil {
		return session.PaperInfo{}, err
	}

	var page PageRef
	found := false
	for _, child := range children {
		if strings.TrimSpace(child.Title) == name {
			page, found = child, true
			break
		}
	}
	refs := &session.PaperRefs{}
	if found {
		if refs, err = p.resolve(ctx, page.ID); err != nil {
			return session.PaperInfo{}, err
		}
	} else {
		if page, err = p.api.CreatePage(ctx, p.rootID, name); err != nil {
			return session.PaperInfo{}, err
		}
		refs.PageID = page.ID
		log.Printf("[notion] created paper page %q (%s)", name, page.ID)
	}

	if refs.HighlightsID == "" {
		sub, err := p.api.CreatePage(ctx, refs.PageID, HighlightsTitle)
		if err != nil {
			return session.PaperInfo{}, fmt.Errorf("paper %q: %w", name, err)
		}
		refs.HighlightsID = sub.ID
	}
	if refs.NotesID == "" {
		sub, err := p.api.CreatePage(ctx, refs.PageID, NotesTitle)
		if err != nil {
			return session.PaperInfo{}, fmt.Errorf("paper %q: %w", name, err)
		}
		refs.NotesID = sub.ID
	}
	info := paperInfo(page, refs)
	info.Name = name
	return info, nil
}

func (p *Papers) resolve(ctx context.Context, pageID string) (*session.PaperRefs, error) {
	subs, err := p.api.ListChildren(ctx, pageID)
	if err != nil {
		return nil, err
	}
	refs := &session.PaperRefs{PageID: pageID}
	for _, sub := range subs {
		switch {
		case refs.HighlightsID == "" && strings.EqualFold(strings.TrimSpace(sub.Title), HighlightsTitle):
			refs.HighlightsID = sub.ID
		case refs.NotesID == "" && strings.EqualFold(strings.TrimSpace(sub.Title), NotesTitle):
			refs.NotesID = sub.ID
		}
	}
	return refs, nil
}

func paperInfo(page PageRef, refs *session.PaperRefs) session.PaperInfo {
	info := session.PaperInfo{Name: page.Title, Refs: refs}
	if !page.CreatedAt.IsZero() {
		created := page.CreatedAt.In(time.Local)
		info.CreatedAt = &created
	}
	return info
}

// sameID compares page ids with or without dashes.
func sameID(a, b string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "-", ""))
	}
	return a != "" && norm(a) == norm(b)
}
