package catalogsync

import (
	"context"
	"fmt"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.uber.org/zap"
)

// CategoryMap maps folded category names to remote ids.
// A value of catalogsync.UncategorizedID means the category could not be created.
type CategoryMap map[string]int64

// Lookup resolves a category name; unknown or blank names resolve to the sentinel.
func (m CategoryMap) Lookup(name string) int64 {
	if id, ok := m[catalogsync.CategoryKey(name)]; ok {
		return id
	}
	return catalogsync.UncategorizedID
}

// EnsureCategories makes sure every named category exists remotely.
// It reads one bounded page of categories and creates the missing names.
// A failed create maps the name to the sentinel and never aborts.
func (s *Service) EnsureCategories(ctx context.Context, names []string) CategoryMap {
	ctx, span := s.tracer.Start(ctx, "catalogsync.EnsureCategories")
	defer span.End()

	result := make(CategoryMap)

	// first spelling wins for creation
	required := make([]string, 0, len(names))
	spelling := make(map[string]string, len(names))
	for _, name := range names {
		key := catalogsync.CategoryKey(name)
		if key == "" {
			continue
		}
		if _, seen := spelling[key]; !seen {
			spelling[key] = name
			required = append(required, key)
		}
	}
	if len(required) == 0 {
		return result
	}

	existing, err := s.platform.ListCategories(ctx, s.config.CategoryPageSize)
	if err != nil {
		s.logger.Warn("failed to list categories, creating all referenced names", zap.Error(err))
	}
	for _, c := range existing {
		key := catalogsync.CategoryKey(c.Name)
		if key == "" {
			continue
		}
		if _, dup := result[key]; !dup {
			result[key] = c.ID
		}
	}

	for _, key := range required {
		if _, ok := result[key]; ok {
			continue
		}
		created, err := s.platform.CreateCategory(ctx, spelling[key])
		if err != nil {
			err = fmt.Errorf("%w: %q: %v", catalogsync.ErrCategoryCreation, spelling[key], err)
			span.RecordError(err)
			s.logger.Warn("category creation failed, using uncategorized", zap.Error(err))
			result[key] = catalogsync.UncategorizedID
			continue
		}
		s.logger.Info("category created",
			zap.String("name", spelling[key]),
			zap.Int64("category_id", created.ID),
		)
		result[key] = created.ID
	}
	return result
}

func categoryNames(items []catalogsync.LocalCatalogItem) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Category)
	}
	return names
}
