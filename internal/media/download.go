package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jdholdren/myjournal/internal/metrics"
	"github.com/jdholdren/myjournal/internal/webclient"
)

const (
	// ImagesDir is where images live beneath the static directory.
	ImagesDir = "article_images"

	// Largest image body we are willing to store.
	maxImageBytes = 20 << 20
)

// Extensions for the types we actually see. Anything else goes through
// the mime package's table.
var imageExts = map[string]string{
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/pjpeg":   ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/avif":    ".avif",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tiff",
	"image/x-icon":  ".ico",
	"image/svg+xml": ".svg",
}

// Downloader stores remote images under Dir with unique names.
type Downloader struct {
	Client *http.Client
	// Filesystem directory images are written to.
	Dir string
	// URL prefix Dir is served under.
	Prefix string
}

// NewDownloader stores images in staticDir/article_images, served from
// /static/article_images/.
func NewDownloader(staticDir string) *Downloader {
	return &Downloader{
		Client: webclient.NewClient(10 * time.Second),
		Dir:    filepath.Join(staticDir, ImagesDir),
		Prefix: path.Join("/static", ImagesDir) + "/",
	}
}

// Download fetches src and writes it to disk, returning the URL path it can
// be served from. referer is sent when non-empty. Any failure is logged and
// yields nil.
func (d *Downloader) Download(ctx context.Context, src, referer string) *string {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		slog.InfoContext(ctx, "skipping image with non-http url", "src", truncateForLog(src))
		metrics.ImageDownloadsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	served, err := d.download(ctx, src, referer)
	if err != nil {
		slog.WarnContext(ctx, "error downloading image", "src", src, "error", err)
		metrics.ImageDownloadsTotal.WithLabelValues("error").Inc()
		return nil
	}

	metrics.ImageDownloadsTotal.WithLabelValues("ok").Inc()
	return &served
}

func (d *Downloader) download(ctx context.Context, src, referer string) (string, error) {
	header := http.Header{}
	if referer != "" {
		header.Set("Referer", referer)
	}

	resp, err := webclient.Get(ctx, d.Client, src, header)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !isImageType(contentType) {
		return "", fmt.Errorf("not an image: %q", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("error reading image body: %s", err)
	}
	if len(body) > maxImageBytes {
		return "", fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty image body")
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating image dir: %s", err)
	}
	name := uuid.NewString() + Extension(contentType)
	if err := os.WriteFile(filepath.Join(d.Dir, name), body, 0o644); err != nil {
		return "", fmt.Errorf("error writing image: %s", err)
	}

	return d.Prefix + name, nil
}

// Extension maps an image Content-Type header to a file extension, defaulting
// to .jpg when the type is missing, unknown or not an image.
func Extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	mediaType = strings.ToLower(mediaType)

	if e, ok := imageExts[mediaType]; ok {
		return e
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return ".jpg"
	}

	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ".jpg"
	}
	switch e := exts[0]; e {
	case ".jpe", ".jfif", ".jpeg":
		return ".jpg"
	default:
		return e
	}
}

// isImageType accepts image/* types. Servers that don't say, or only say
// octet-stream, get the benefit of the doubt.
func isImageType(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	mediaType = strings.ToLower(mediaType)

	return mediaType == "application/octet-stream" || strings.HasPrefix(mediaType, "image/")
}

// data: URIs can be enormous
func truncateForLog(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
