package certforge

import (
	"sync"
	"time"
)

// TemplateCache is an in-memory cache of the template gallery and its
// categories with TTL. The gallery is read on every public page; templates
// only change when an admin saves one, which also calls Invalidate.
type TemplateCache struct {
	mu         sync.RWMutex
	templates  []Template
	categories []string
	fetched    time.Time
	ttl        time.Duration
	store      *Store
}

// NewTemplateCache creates a TemplateCache backed by the given Store.
func NewTemplateCache(s *Store, ttl time.Duration) *TemplateCache {
	return &TemplateCache{store: s, ttl: ttl}
}

func (c *TemplateCache) valid() bool {
	return c.templates != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *TemplateCache) Invalidate() {
	c.mu.Lock()
	c.templates = nil
	c.categories = nil
	c.mu.Unlock()
}

func (c *TemplateCache) load() error {
	if c.valid() {
		return nil
	}
	templates, err := c.store.ListTemplates("")
	if err != nil {
		return err
	}
	categories, err := c.store.ListCategories()
	if err != nil {
		return err
	}
	c.templates = templates
	c.categories = categories
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached templates and categories after ensuring the
// cache is fresh. It tries a read lock first; only takes a write lock when a
// reload is needed.
func (c *TemplateCache) ensureLoaded() ([]Template, []string, error) {
	c.mu.RLock()
	if c.valid() {
		templates, categories := c.templates, c.categories
		c.mu.RUnlock()
		return templates, categories, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return nil, nil, err
	}
	return c.templates, c.categories, nil
}

// ListTemplates returns templates, optionally filtered by category.
func (c *TemplateCache) ListTemplates(category string) ([]Template, error) {
	templates, _, err := c.ensureLoaded()
	if err != nil {
		return nil, err
	}
	if category == "" {
		return templates, nil
	}
	var filtered []Template
	for _, t := range templates {
		if t.Category == category {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// ListCategories returns the distinct categories in use.
func (c *TemplateCache) ListCategories() ([]string, error) {
	_, categories, err := c.ensureLoaded()
	return categories, err
}
