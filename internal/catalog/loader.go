// Package catalog loads the ordered sections and questions a session runs over.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bandup/session-service/internal/cache"
	"github.com/bandup/session-service/internal/models"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeFull   Mode = "full"
	ModeSubset Mode = "subset"
)

func (m Mode) Valid() bool {
	return m == ModeFull || m == ModeSubset
}

var (
	ErrNoSections         = errors.New("no section ids given")
	ErrInvalidMode        = errors.New("invalid catalog mode")
	ErrCatalogUnavailable = errors.New("section catalog unavailable")
)

type Loader struct {
	api    ContentAPI
	cache  cache.CacheService
	ttl    time.Duration
	logger *slog.Logger
}

type LoaderConfig struct {
	API    ContentAPI
	Cache  cache.CacheService // optional
	TTL    time.Duration
	Logger *slog.Logger
}

func NewLoader(cfg LoaderConfig) *Loader {
	return &Loader{
		api:    cfg.API,
		cache:  cfg.Cache,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
	}
}

// Load fetches every section with its questions. All fetches run together and the
// result is all-or-nothing: if any of them fails, no sections are returned.
//
// In full mode sections come back ordered by OrderIndex. In subset mode the caller's
// order is preserved.
func (l *Loader) Load(ctx context.Context, ids []string, mode Mode) ([]models.Section, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoSections
	}

	start := time.Now()
	sections := make([]models.Section, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			s, err := l.loadSection(gctx, id)
			if err != nil {
				return err
			}
			sections[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		l.logger.Error("Failed to load section catalog",
			"section_ids", ids,
			"mode", mode,
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	if mode == ModeFull {
		models.SortByOrder(sections)
	}

	l.logger.Info("Section catalog loaded",
		"sections", len(sections),
		"questions", models.TotalQuestions(sections),
		"mode", mode,
		"duration", time.Since(start))

	return sections, nil
}

// Invalidate drops the cached copies of the given sections so the next Load refetches them.
func (l *Loader) Invalidate(ctx context.Context, ids []string) error {
	if l.cache == nil {
		return nil
	}
	ids = normalizeIDs(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sectionKey(id)
	}
	if err := l.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate sections: %w", err)
	}
	l.logger.Info("Section cache invalidated", "section_ids", ids)
	return nil
}

func sectionKey(id string) string {
	return "section:" + id
}

func (l *Loader) loadSection(ctx context.Context, id string) (models.Section, error) {
	key := sectionKey(id)
	if l.cache != nil {
		var cached models.Section
		err := l.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l.logger.Warn("Section cache read failed", "section_id", id, "error", err)
		}
	}

	var (
		section   models.Section
		questions []models.Question
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		section, err = l.api.GetSection(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		questions, err = l.api.GetQuestions(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Section{}, err
	}

	if section.ID == "" {
		section.ID = id
	}
	models.SortByNumber(questions)
	section.Questions = questions

	if l.cache != nil {
		// CorrectAnswer is excluded from JSON, so the cached copy never carries it.
		if err := l.cache.Set(ctx, key, section, l.ttl); err != nil {
			l.logger.Warn("Section cache write failed", "section_id", id, "error", err)
		}
	}
	return section, nil
}

// normalizeIDs trims ids and drops blanks and duplicates, keeping first occurrence order.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
