/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package directory

import (
	"context"
	"sync"

	"tripbook/internal/domain"
)

// Selection is what the navigator currently shows.
type Selection struct {
	BookID    string
	SectionID string
	PageID    string
}

// Navigator keeps the section/page selection of one book view.
// A failed load leaves the previous view and selection untouched.
type Navigator struct {
	dir *Directory

	mu   sync.Mutex
	tree Tree
	sel  Selection
}

// NewNavigator returns a navigator with nothing open.
func NewNavigator(dir *Directory) *Navigator { return &Navigator{dir: dir} }

// OpenTrip opens the trip's book, creating it if needed, and selects its first section.
func (n *Navigator) OpenTrip(ctx context.Context, tripID, tripName string) (Tree, error) {
	b, err := n.dir.GetOrCreateBook(ctx, tripID, tripName)
	if err != nil {
		return Tree{}, err
	}
	t, err := n.dir.Tree(ctx, b.ID)
	if err != nil {
		return Tree{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sel.BookID != b.ID {
		n.sel = Selection{BookID: b.ID}
	}
	n.tree = t
	n.fixSelectionLocked(true)
	return t, nil
}

// Refresh reloads the open book.
func (n *Navigator) Refresh(ctx context.Context) (Tree, error) {
	n.mu.Lock()
	bookID := n.sel.BookID
	n.mu.Unlock()
	if bookID == "" {
		return Tree{}, domain.Invalid("no book open")
	}
	t, err := n.dir.Tree(ctx, bookID)
	if err != nil {
		return Tree{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tree = t
	n.fixSelectionLocked(false)
	return t, nil
}

// fixSelectionLocked drops selections that no longer exist. With pickFirst an
// empty section selection defaults to the book's first section.
func (n *Navigator) fixSelectionLocked(pickFirst bool) {
	sec, ok := n.sectionLocked(n.sel.SectionID)
	if !ok {
		n.sel.SectionID, n.sel.PageID = "", ""
		if pickFirst && len(n.tree.Sections) > 0 {
			n.sel.SectionID = n.tree.Sections[0].Section.ID
		}
		return
	}
	if n.sel.PageID == "" {
		return
	}
	for _, p := range sec.Pages {
		if p.ID == n.sel.PageID {
			return
		}
	}
	n.sel.PageID = ""
}

func (n *Navigator) sectionLocked(id string) (SectionNode, bool) {
	if id == "" {
		return SectionNode{}, false
	}
	for _, s := range n.tree.Sections {
		if s.Section.ID == id {
			return s, true
		}
	}
	return SectionNode{}, false
}

// Tree returns the last loaded book.
func (n *Navigator) Tree() Tree {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tree
}

// Selection returns the current selection.
func (n *Navigator) Selection() Selection {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sel
}

// SelectSection shows a section of the open book. The page selection is cleared.
func (n *Navigator) SelectSection(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sectionLocked(id); !ok {
		return domain.NotFound("section", id)
	}
	if n.sel.SectionID != id {
		n.sel.PageID = ""
	}
	n.sel.SectionID = id
	return nil
}

// SelectPage opens a page of the selected section for editing.
func (n *Navigator) SelectPage(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	sec, ok := n.sectionLocked(n.sel.SectionID)
	if ok {
		for _, p := range sec.Pages {
			if p.ID == id {
				n.sel.PageID = id
				return nil
			}
		}
	}
	return domain.NotFound("page", id)
}

// ClosePage returns from the page editor to the section view.
func (n *Navigator) ClosePage() {
	n.mu.Lock()
	n.sel.PageID = ""
	n.mu.Unlock()
}

// AddSection appends a section to the open book.
func (n *Navigator) AddSection(ctx context.Context, title string) (domain.Section, error) {
	bookID := n.Selection().BookID
	if bookID == "" {
		return domain.Section{}, domain.Invalid("no book open")
	}
	s, err := n.dir.AddSection(ctx, bookID, title)
	if err != nil {
		return domain.Section{}, err
	}
	_, err = n.Refresh(ctx)
	return s, err
}

// AddPage appends a page to the selected section and selects it.
func (n *Navigator) AddPage(ctx context.Context) (domain.Page, error) {
	secID := n.Selection().SectionID
	if secID == "" {
		return domain.Page{}, domain.Invalid("no section selected")
	}
	p, err := n.dir.AddPage(ctx, secID, "")
	if err != nil {
		return domain.Page{}, err
	}
	if _, err := n.Refresh(ctx); err != nil {
		return p, err
	}
	n.mu.Lock()
	if n.sel.SectionID == secID {
		n.sel.PageID = p.ID
	}
	n.mu.Unlock()
	return p, nil
}

// DeleteSection removes a section; if it was selected the selection is cleared.
func (n *Navigator) DeleteSection(ctx context.Context, id string) error {
	if err := n.dir.DeleteSection(ctx, id); err != nil {
		return err
	}
	n.mu.Lock()
	if n.sel.SectionID == id {
		n.sel.SectionID, n.sel.PageID = "", ""
	}
	n.mu.Unlock()
	_, err := n.Refresh(ctx)
	return err
}

// DeletePage removes a page; if it was selected the page editor is closed.
func (n *Navigator) DeletePage(ctx context.Context, id string) error {
	if err := n.dir.DeletePage(ctx, id); err != nil {
		return err
	}
	n.mu.Lock()
	if n.sel.PageID == id {
		n.sel.PageID = ""
	}
	n.mu.Unlock()
	_, err := n.Refresh(ctx)
	return err
}
