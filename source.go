package updates

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lottamob/Updates/check"
)

// SyncContent ingests every .md/.mdx file under ContentDir into the
// store, keyed by slug derived from the filename. Posts that fail the
// editorial checks are saved unpublished so they can be fixed from the
// dashboard. Sync only upserts; posts created in the admin UI survive.
func (a *App) SyncContent() error {
	dir := a.Config.ContentDir
	synced := 0
	seen := map[string]string{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".mdx" {
			return nil
		}

		slug := Slugify(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
		if slug == "" {
			a.Echo.Logger.Warnf("content: %s: cannot derive a slug, skipping", path)
			return nil
		}
		if prev, dup := seen[slug]; dup {
			a.Echo.Logger.Warnf("content: %s: slug %q already taken by %s, skipping", path, slug, prev)
			return nil
		}

		post, report, err := a.loadPostFile(path, slug)
		if err != nil {
			a.Echo.Logger.Errorf("content: %s: %v", path, err)
			return nil
		}
		for _, f := range report.Findings {
			a.Echo.Logger.Warnf("content: %s:%d %s: %s", path, f.Line, f.Rule, f.Message)
		}
		if post.Published && !report.Ok() {
			a.Echo.Logger.Warnf("content: %s: held back from publishing until checks pass", path)
			post.Published = false
		}

		if err := a.Store.SavePost(post); err != nil {
			return fmt.Errorf("save %s: %w", slug, err)
		}
		seen[slug] = path
		synced++
		return nil
	})
	if err != nil {
		return err
	}

	if a.Cache != nil {
		a.Cache.Invalidate()
	}
	a.Echo.Logger.Infof("content: synced %d posts from %s", synced, dir)
	return nil
}

// loadPostFile parses one source file into a Post plus its check report.
func (a *App) loadPostFile(path, slug string) (Post, *check.Report, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Post{}, nil, err
	}
	doc, err := a.parser.Parse(src)
	if err != nil {
		return Post{}, nil, err
	}

	fm := doc.FrontMatter
	title := fm.Title
	if title == "" {
		title = TitleFromSlug(slug)
	}
	post := Post{
		Title:     title,
		Date:      fm.Date,
		Tags:      fm.Tags,
		Summary:   fm.Summary,
		Authors:   fm.Authors,
		Images:    fm.Images,
		Layout:    fm.Layout,
		Slug:      slug,
		Content:   doc.Body,
		Published: !fm.Draft,
	}

	report := a.checker.Check(doc)
	report.Path = path
	return post, report, nil
}
