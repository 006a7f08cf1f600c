package updates

import (
	"database/sql"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = sql.ErrNoRows

// snapshot is one cache generation: published posts in list order, a slug
// index into them, and the tag list.
type snapshot struct {
	posts  []Post
	bySlug map[string]int
	tags   []string
	taken  time.Time
}

// PostCache keeps published posts and tags in memory, reloading from the
// store when the TTL lapses or after Invalidate.
type PostCache struct {
	mu    sync.RWMutex
	cur   *snapshot
	ttl   time.Duration
	store *Store
}

// NewPostCache creates a PostCache backed by the given Store.
func NewPostCache(s *Store, ttl time.Duration) *PostCache {
	return &PostCache{store: s, ttl: ttl}
}

// Invalidate drops the current snapshot so the next read reloads.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
}

func (c *PostCache) fresh(s *snapshot) bool {
	return s != nil && time.Since(s.taken) < c.ttl
}

// current returns a fresh snapshot, reloading from the store if needed.
// Reads take the cheap lock; only a reload takes the write lock, and the
// freshness re-check under it keeps concurrent reloads from stacking.
func (c *PostCache) current() (*snapshot, error) {
	c.mu.RLock()
	s := c.cur
	c.mu.RUnlock()
	if c.fresh(s) {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh(c.cur) {
		return c.cur, nil
	}

	posts, err := c.store.ListPosts("")
	if err != nil {
		return nil, err
	}
	tags, err := c.store.ListTags()
	if err != nil {
		return nil, err
	}
	s = &snapshot{
		posts:  posts,
		bySlug: make(map[string]int, len(posts)),
		tags:   tags,
		taken:  time.Now(),
	}
	for i, p := range posts {
		s.bySlug[p.Slug] = i
	}
	c.cur = s
	return s, nil
}

// ListPosts returns published posts, optionally filtered by tag.
func (c *PostCache) ListPosts(tag string) ([]Post, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return s.posts, nil
	}
	want := normalizeTag(tag)
	var filtered []Post
	for _, p := range s.posts {
		for _, t := range p.Tags {
			if normalizeTag(t) == want {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered, nil
}

// ListTags returns the unique tags across published posts.
func (c *PostCache) ListTags() ([]string, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.tags, nil
}

// GetPost returns a published post by slug.
func (c *PostCache) GetPost(slug string) (Post, error) {
	s, err := c.current()
	if err != nil {
		return Post{}, err
	}
	if i, ok := s.bySlug[slug]; ok {
		return s.posts[i], nil
	}
	return Post{}, ErrNotFound
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
