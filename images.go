package updates

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
	uploadsSubdir = "uploads"
)

// downscale resizes img to maxW wide when it is wider, keeping the aspect
// ratio. Smaller images pass through untouched.
func downscale(img image.Image, maxW int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW {
		return img
	}
	h := b.Dy() * maxW / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxW, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// processImage decodes an upload, downscales it to maxImageWidth, and
// re-encodes as JPEG. Returns the metadata row and the encoded bytes.
func processImage(src io.Reader, originalName string) (Image, []byte, error) {
	decoded, _, err := image.Decode(src)
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode image: %w", err)
	}

	decoded = downscale(decoded, maxImageWidth)
	b := decoded.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return Image{
		Filename:     imageSlug(originalName) + ".jpg",
		OriginalName: originalName,
		Width:        b.Dx(),
		Height:       b.Dy(),
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
	}, buf.Bytes(), nil
}

// imageSlug turns an upload's filename, minus extension, into a URL-safe slug.
func imageSlug(name string) string {
	return Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
}

// ensureUniqueFilename bumps the filename with a counter until it collides
// with neither the uploads directory nor the images table.
func (a *App) ensureUniqueFilename(img *Image) {
	taken := make(map[string]bool)
	if existing, err := a.Store.ListImages(); err == nil {
		for _, ex := range existing {
			taken[ex.Filename] = true
		}
	}

	dir := filepath.Join(a.staticDir, uploadsSubdir)
	base := strings.TrimSuffix(img.Filename, ".jpg")
	candidate := img.Filename
	for counter := 1; ; counter++ {
		_, statErr := os.Stat(filepath.Join(dir, candidate))
		if statErr != nil && !taken[candidate] {
			break
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, counter+1)
	}
	img.Filename = candidate
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	switch {
	case err != nil:
		return c.String(http.StatusBadRequest, "No image in request")
	case file.Size > maxUploadSize:
		return c.String(http.StatusBadRequest, "Image exceeds the 10MB limit")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	img, data, err := processImage(src, file.Filename)
	if err != nil {
		return c.String(http.StatusBadRequest, "Unreadable image: "+err.Error())
	}
	if err := a.storeUpload(img, data); err != nil {
		return err
	}
	return a.renderImageList(c)
}

// storeUpload writes the encoded image into the uploads dir and records its
// metadata row, bumping the filename first if the name is taken.
func (a *App) storeUpload(img Image, data []byte) error {
	a.ensureUniqueFilename(&img)
	dir := filepath.Join(a.staticDir, uploadsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("updates: create uploads dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, img.Filename), data, 0o644); err != nil {
		return fmt.Errorf("updates: write image: %w", err)
	}
	return a.Store.SaveImage(img)
}

func (a *App) handleImageDelete(c echo.Context) error {
	filename := c.Param("filename")
	if filename == "" {
		return c.String(http.StatusBadRequest, "Missing filename")
	}

	// The row is authoritative; a file already gone is not an error.
	_ = os.Remove(filepath.Join(a.staticDir, uploadsSubdir, filename))
	if err := a.Store.DeleteImage(filename); err != nil {
		return err
	}
	return a.renderImageList(c)
}

func (a *App) handleImageList(c echo.Context) error {
	return a.renderImageList(c)
}

func (a *App) renderImageList(c echo.Context) error {
	images, err := a.Store.ListImages()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminImages(images, CsrfToken(c)))
}
