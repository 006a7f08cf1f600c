package updates

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Lottamob/Updates/check"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
}

func (a *App) renderRSS(c echo.Context, posts []Post) error {
	base := a.Config.URL
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		pubDate := ""
		if t, err := check.ParseDate(p.Date); err == nil {
			pubDate = t.Format(time.RFC1123Z)
		}
		postURL := BuildURL(base, "blog", p.Slug)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: p.Summary,
			Author:      a.rssAuthor(p),
			Categories:  p.Tags,
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Items:       items,
		},
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(res).Encode(feed)
}

// rssAuthor formats the item author as "email (name)" from the first
// author id that resolves in the registry.
func (a *App) rssAuthor(p Post) string {
	for _, id := range p.Authors {
		author, ok := a.Authors[id]
		if !ok {
			continue
		}
		if author.Email != "" {
			return author.Email + " (" + author.Name + ")"
		}
		return author.Name
	}
	return ""
}
