package updates

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeContentFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validPostSource = `---
title: Hello World
date: "2024-03-01"
tags:
  - go
  - testing
draft: false
summary: A fine first post.
authors:
  - default
images:
  - /static/images/cover.jpg
layout: PostLayout
---

## Heading

Body text with a [link](#heading).
`

func newSyncApp(t *testing.T, contentDir string) *App {
	t.Helper()
	return newTestAppConfig(t, SiteConfig{ContentDir: contentDir, AuthorsFile: filepath.Join(contentDir, "authors.yaml")})
}

func TestSyncContentPublishesValidPost(t *testing.T) {
	dir := t.TempDir()
	writeContentFile(t, dir, "hello-world.mdx", validPostSource)
	a := newSyncApp(t, dir)

	if err := a.SyncContent(); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}

	got, err := a.Store.GetPost("hello-world")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Title != "Hello World" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Layout != "PostLayout" {
		t.Errorf("Layout = %q", got.Layout)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if len(got.Authors) != 1 || got.Authors[0] != "default" {
		t.Errorf("Authors = %v", got.Authors)
	}
	if strings.Contains(got.Content, "---") || !strings.Contains(got.Content, "## Heading") {
		t.Errorf("Content should be the body without front matter, got %q", got.Content)
	}
	if !got.Published {
		t.Error("valid non-draft post should be published")
	}
}

func TestSyncContentHoldsBackFailingPost(t *testing.T) {
	dir := t.TempDir()
	// draft: false but no summary, so the checks fail
	writeContentFile(t, dir, "broken.md", `---
title: Broken
date: "2024-03-01"
tags:
  - go
draft: false
summary: ""
authors:
  - default
images: []
layout: PostLayout
---

Body.
`)
	a := newSyncApp(t, dir)

	if err := a.SyncContent(); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}

	if _, err := a.Store.GetPost("broken"); err != sql.ErrNoRows {
		t.Errorf("failing post should not be published, GetPost err = %v", err)
	}
	got, err := a.Store.GetPostAny("broken")
	if err != nil {
		t.Fatalf("GetPostAny: %v", err)
	}
	if got.Published {
		t.Error("failing post should be held back unpublished")
	}
}

func TestSyncContentKeepsDraftsUnpublished(t *testing.T) {
	dir := t.TempDir()
	src := strings.Replace(validPostSource, "draft: false", "draft: true", 1)
	writeContentFile(t, dir, "wip.md", src)
	a := newSyncApp(t, dir)

	if err := a.SyncContent(); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}

	got, err := a.Store.GetPostAny("wip")
	if err != nil {
		t.Fatalf("GetPostAny: %v", err)
	}
	if got.Published {
		t.Error("draft should stay unpublished")
	}
}

func TestSyncContentWalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeContentFile(t, dir, filepath.Join("2024", "deep-post.mdx"), validPostSource)
	a := newSyncApp(t, dir)

	if err := a.SyncContent(); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}

	if _, err := a.Store.GetPostAny("deep-post"); err != nil {
		t.Errorf("nested file should be ingested, got %v", err)
	}
}

func TestSyncContentFirstFileWinsSlug(t *testing.T) {
	dir := t.TempDir()
	first := strings.Replace(validPostSource, "title: Hello World", "title: First", 1)
	second := strings.Replace(validPostSource, "title: Hello World", "title: Second", 1)
	// Both names slugify to "a-post"; WalkDir visits .md before .mdx.
	writeContentFile(t, dir, "a-post.md", first)
	writeContentFile(t, dir, "a-post.mdx", second)
	a := newSyncApp(t, dir)

	if err := a.SyncContent(); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}

	got, err := a.Store.GetPostAny("a-post")
	if err != nil {
		t.Fatalf("GetPostAny: %v", err)
	}
	if got.Title != "First" {
		t.Errorf("Title = %q, want the first file to win", got.Title)
	}
	posts, err := a.Store.ListAllPosts()
	if err != nil {
		t.Fatalf("ListAllPosts: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("post count = %d, want 1", len(posts))
	}
}

func TestSyncContentTitleFallsBackToSlug(t *testing.T) {
	dir := t.TempDir()
	writeContentFile(t, dir, "untitled-thoughts.md", `---
date: "2024-03-01"
tags:
  - notes
draft: true
summary: Some thoughts.
authors:
  - default
images: []
layout: PostSimple
---

Thinking out loud.
`)
	a := newSyncApp(t, dir)

	if err := a.SyncContent(); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}

	got, err := a.Store.GetPostAny("untitled-thoughts")
	if err != nil {
		t.Fatalf("GetPostAny: %v", err)
	}
	if got.Title != "Untitled Thoughts" {
		t.Errorf("Title = %q, want the slug-derived fallback", got.Title)
	}
}

func TestSyncContentIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeContentFile(t, dir, "hello-world.mdx", validPostSource)
	writeContentFile(t, dir, "authors.yaml", "default:\n  name: Jane Doe\n")
	writeContentFile(t, dir, "notes.txt", "not a post")
	a := newSyncApp(t, dir)

	if err := a.SyncContent(); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}

	posts, err := a.Store.ListAllPosts()
	if err != nil {
		t.Fatalf("ListAllPosts: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("post count = %d, want only the .mdx file", len(posts))
	}
}

func TestSyncContentKeepsAdminPosts(t *testing.T) {
	dir := t.TempDir()
	writeContentFile(t, dir, "from-file.md", validPostSource)
	a := newSyncApp(t, dir)

	admin := validPost("admin-made")
	if err := a.Store.SavePost(admin); err != nil {
		t.Fatalf("SavePost: %v", err)
	}

	if err := a.SyncContent(); err != nil {
		t.Fatalf("SyncContent: %v", err)
	}

	if _, err := a.Store.GetPostAny("admin-made"); err != nil {
		t.Errorf("admin-created post should survive a sync, got %v", err)
	}
	if _, err := a.Store.GetPostAny("from-file"); err != nil {
		t.Errorf("file post should be ingested, got %v", err)
	}
}
