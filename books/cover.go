package books

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

const (
	maxCoverWidth    = 400
	coverJPEGQuality = 80
	// CoverFile is the name of the generated thumbnail in a book's output dir.
	CoverFile = "cover.jpg"
)

var coverCandidates = []string{"cover.jpg", "cover.jpeg", "cover.png", "cover.gif"}

// FindCover returns the path of the first cover image in dir, or "".
func FindCover(dir string) string {
	for _, name := range coverCandidates {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Thumbnail decodes an image from src, scales it down to maxCoverWidth when
// wider, and encodes it as JPEG.
func Thumbnail(src io.Reader) ([]byte, image.Point, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode cover: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxCoverWidth {
		newH := h * maxCoverWidth / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxCoverWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxCoverWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: coverJPEGQuality}); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode cover: %w", err)
	}
	return buf.Bytes(), image.Pt(w, h), nil
}

// writeCover thumbnails the cover at src into dst.
func writeCover(src, dst string) (image.Point, error) {
	f, err := os.Open(src)
	if err != nil {
		return image.Point{}, err
	}
	defer f.Close()
	data, size, err := Thumbnail(f)
	if err != nil {
		return image.Point{}, err
	}
	return size, os.WriteFile(dst, data, 0o644)
}
