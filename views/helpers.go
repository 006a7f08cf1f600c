// Package views holds helpers shared by the site's templ templates:
// related-post selection, byline resolution, and Schema.org JSON-LD.
package views

import (
	"encoding/json"
	"net/url"
	"strings"

	updates "github.com/Lottamob/Updates"
	"github.com/Lottamob/Updates/check"
)

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func sharesTag(tags []string, want map[string]bool) bool {
	for _, t := range tags {
		if want[normalizeTag(t)] {
			return true
		}
	}
	return false
}

// FilterRelatedPosts picks the posts sharing at least one tag with
// current, keeping their order and skipping current itself.
func FilterRelatedPosts(current updates.Post, posts []updates.Post) []updates.Post {
	want := make(map[string]bool, len(current.Tags))
	for _, t := range current.Tags {
		if tag := normalizeTag(t); tag != "" {
			want[tag] = true
		}
	}

	var related []updates.Post
	for _, p := range posts {
		if p.Slug == current.Slug {
			continue
		}
		if sharesTag(p.Tags, want) {
			related = append(related, p)
		}
	}
	return related
}

// AuthorNames resolves a post's author ids to display names, keeping
// front-matter order and dropping ids missing from the registry.
func AuthorNames(post updates.Post, authors map[string]updates.Author) []string {
	var names []string
	for _, id := range post.Authors {
		if a, ok := authors[id]; ok && a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// DisplayDate renders a front-matter date like "May 17, 2024".
// Unparseable dates pass through untouched.
func DisplayDate(date string) string {
	t, err := check.ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format("January 2, 2006")
}

// PathEscape wraps url.PathEscape for use in templ expressions.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// TagClass returns the CSS classes for a tag pill; the active variant
// inverts the colors.
func TagClass(active bool) string {
	base := "inline-flex items-center rounded-full border border-slate-300 dark:border-slate-600 px-2.5 py-1 text-[11px] font-semibold uppercase tracking-wide transition hover:border-teal-500"
	if active {
		base += " bg-teal-600 text-white border-teal-600"
	}
	return base
}

// JoinTags formats a tag slice as a comma-separated string for form fields.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

func person(name string) map[string]string {
	return map[string]string{"@type": "Person", "name": name}
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg updates.SiteConfig) string {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      updates.BuildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	if cfg.Author != "" {
		data["author"] = person(cfg.Author)
	}
	return marshalJsonLD(data)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a
// post, resolving bylines against the author registry.
func BlogPostingJsonLD(cfg updates.SiteConfig, post updates.Post, authors map[string]updates.Author) string {
	postURL := updates.BuildURL(cfg.URL, "blog", post.Slug)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Summary,
		"datePublished": post.Date,
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}

	if names := AuthorNames(post, authors); len(names) > 0 {
		people := make([]map[string]string, len(names))
		for i, name := range names {
			people[i] = person(name)
		}
		data["author"] = people
	} else if cfg.Author != "" {
		data["author"] = person(cfg.Author)
	}

	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}

	if len(post.Images) > 0 {
		imgs := make([]string, len(post.Images))
		for i, img := range post.Images {
			imgs[i] = absoluteImageURL(cfg.URL, img)
		}
		data["image"] = imgs
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	return marshalJsonLD(data)
}

// absoluteImageURL roots a site-relative image path on the site URL;
// full URLs pass through.
func absoluteImageURL(siteURL, img string) string {
	if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
		return img
	}
	return strings.TrimSuffix(siteURL, "/") + img
}

func marshalJsonLD(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
