package updates

// Post is the core content type: one article ingested from the content
// directory (or written in the admin), stored in SQLite and rendered by
// the user's templates.
type Post struct {
	Title     string
	Date      string
	Tags      []string
	Summary   string
	Authors   []string // author ids resolved against the authors registry
	Images    []string // cover/social image paths
	Layout    string   // template id, e.g. "PostLayout"
	Link      string
	Slug      string
	Content   string // markdown body without front matter
	Published bool
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

// Image is the stored metadata for an uploaded image.
type Image struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int
	UploadedAt   string
}

// Author is one entry of the authors registry that post front matter
// references by id.
type Author struct {
	Name       string `yaml:"name"`
	Avatar     string `yaml:"avatar"`
	Occupation string `yaml:"occupation"`
	Company    string `yaml:"company"`
	Email      string `yaml:"email"`
	Twitter    string `yaml:"twitter"`
	Linkedin   string `yaml:"linkedin"`
	Github     string `yaml:"github"`
}
