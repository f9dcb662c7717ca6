package media

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Disk is a local attachment store. Relative paths use forward slashes and
// are what articles record as attachments.
type Disk struct {
	root      string
	publicURL string
}

func NewDisk(root, publicURL string) *Disk {
	return &Disk{root: root, publicURL: strings.TrimSuffix(publicURL, "/")}
}

// Path resolves a relative attachment path on the local filesystem.
func (d *Disk) Path(rel string) string {
	return filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+rel)))
}

// URL is the public address of a relative attachment path.
func (d *Disk) URL(rel string) string {
	return d.publicURL + "/" + strings.TrimPrefix(rel, "/")
}

func (d *Disk) Exists(rel string) bool {
	info, err := os.Stat(d.Path(rel))
	return err == nil && !info.IsDir()
}

// Put writes data to rel, replacing any existing file.
func (d *Disk) Put(rel string, data []byte) error {
	dst := d.Path(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// CoverPath is where the cover image of an article is stored.
func CoverPath(folder string, articleID int64) string {
	return fmt.Sprintf("%s/%d/images/youtube-cover.jpg", folder, articleID)
}

// VideoPath is where the local video copy of an article is stored.
func VideoPath(folder string, articleID int64, slug string) string {
	return fmt.Sprintf("%s/%d/videos/%s.mp4", folder, articleID, slug)
}

// ThumbPath is where a scaled variant of the cover is stored next to the video.
func ThumbPath(folder string, articleID int64, slug string, width int) string {
	return fmt.Sprintf("%s/%d/videos/thumbs/%s_%d.jpg", folder, articleID, slug, width)
}
