package blog

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ytblog/content"
	"ytblog/store"
)

// CategoryNode is a category with its children, as served to clients.
type CategoryNode struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Slug     string          `json:"slug"`
	ParentID *int64          `json:"parent_id"`
	Children []*CategoryNode `json:"children,omitempty"`
}

// CategoryTree returns the category forest. Siblings keep the store order,
// sort then title. Nodes whose parent is missing are treated as roots.
func (s *Service) CategoryTree(ctx context.Context) ([]*CategoryNode, error) {
	cats, err := s.db.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return BuildTree(cats), nil
}

// BuildTree nests a flat, ordered category list.
func BuildTree(cats []store.Category) []*CategoryNode {
	nodes := make(map[int64]*CategoryNode, len(cats))
	for _, c := range cats {
		nodes[c.ID] = &CategoryNode{ID: c.ID, Title: c.Title, Slug: c.Slug, ParentID: c.ParentID}
	}

	roots := make([]*CategoryNode, 0)
	for _, c := range cats {
		n := nodes[c.ID]
		if c.ParentID != nil && *c.ParentID != c.ID {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// NewCategory is a category the user creates from the client.
type NewCategory struct {
	Title    string `json:"title"`
	ParentID *int64 `json:"parent_id"`
}

// CreateCategory adds a published category with a unique slug.
func (s *Service) CreateCategory(ctx context.Context, owner *store.User, in NewCategory) (*store.Category, error) {
	in.Title = strings.TrimSpace(in.Title)

	verr := &ValidationError{}
	switch n := utf8.RuneCountInString(in.Title); {
	case n == 0:
		verr.add("title", "The title field is required.")
	case n > maxTitleLength:
		verr.add("title", fmt.Sprintf("The title may not be greater than %d characters.", maxTitleLength))
	}
	if in.ParentID != nil {
		ok, err := s.db.CategoryExists(ctx, *in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("checking parent category: %w", err)
		}
		if !ok {
			verr.add("parent_id", "The selected parent id is invalid.")
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	slug, err := content.UniqueSlug(in.Title, func(candidate string) (bool, error) {
		return s.db.CategorySlugExists(ctx, candidate)
	})
	if err != nil {
		return nil, fmt.Errorf("generating category slug: %w", err)
	}

	c := &store.Category{
		ParentID:  in.ParentID,
		Title:     in.Title,
		Slug:      slug,
		Published: true,
	}
	if owner != nil {
		c.UserID = &owner.ID
	}
	if err := s.db.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	s.logger.Info("category created", "category_id", c.ID, "slug", c.Slug)
	return c, nil
}
