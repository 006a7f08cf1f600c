package updates

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"
)

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	XMLNS   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// renderSitemap lists the home page and every published post. Posts arrive
// newest first, so the home entry borrows the latest post's date.
func (a *App) renderSitemap(c echo.Context, posts []Post) error {
	base := a.Config.URL

	home := urlEntry{Loc: BuildURL(base)}
	if len(posts) > 0 {
		home.LastMod = posts[0].Date
	}
	entries := make([]urlEntry, 0, len(posts)+1)
	entries = append(entries, home)
	for _, p := range posts {
		entries = append(entries, urlEntry{
			Loc:     BuildURL(base, "blog", p.Slug),
			LastMod: p.Date,
		})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(res).Encode(urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  entries,
	})
}
