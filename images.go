package certforge

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

const (
	maxTemplateWidth = 2000
	maxUploadSize    = 10 << 20 // 10MB
)

// processTemplateImage decodes an admin-uploaded base image, scales it down
// if wider than maxTemplateWidth, and re-encodes it as PNG. PNG keeps the
// alpha channel, which transparent-background templates rely on.
func processTemplateImage(src multipart.File, originalName string) (TemplateImage, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return TemplateImage{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxTemplateWidth {
		newH := h * maxTemplateWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxTemplateWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxTemplateWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return TemplateImage{}, nil, fmt.Errorf("encode png: %w", err)
	}

	filename := slugifyFilename(originalName) + ".png"

	return TemplateImage{
		Filename:     filename,
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
	}, buf.Bytes(), nil
}

// slugifyFilename converts a filename (without extension) to a URL-safe slug.
func slugifyFilename(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	slug := Slugify(base)
	if slug == "" {
		slug = "template"
	}
	return slug
}

// ensureUniqueImageName appends a counter while the filename collides with an
// existing file in dir.
func ensureUniqueImageName(dir string, img *TemplateImage) {
	base := strings.TrimSuffix(img.Filename, ".png")
	candidate := img.Filename
	counter := 1
	for {
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			break
		}
		counter++
		candidate = fmt.Sprintf("%s-%d.png", base, counter)
	}
	img.Filename = candidate
}

// saveTemplateImage writes processed base-image bytes under TemplateDir and
// returns the stored filename.
func (a *App) saveTemplateImage(file *multipart.FileHeader) (TemplateImage, error) {
	if file.Size > maxUploadSize {
		return TemplateImage{}, fmt.Errorf("file too large (max 10MB)")
	}
	src, err := file.Open()
	if err != nil {
		return TemplateImage{}, err
	}
	defer src.Close()

	img, data, err := processTemplateImage(src, file.Filename)
	if err != nil {
		return TemplateImage{}, err
	}

	if err := os.MkdirAll(a.Config.TemplateDir, 0o755); err != nil {
		return TemplateImage{}, fmt.Errorf("create template dir: %w", err)
	}
	ensureUniqueImageName(a.Config.TemplateDir, &img)
	if err := os.WriteFile(filepath.Join(a.Config.TemplateDir, img.Filename), data, 0o644); err != nil {
		return TemplateImage{}, fmt.Errorf("write template image: %w", err)
	}
	return img, nil
}

// decodeUpload decodes a user-submitted photo for an image field. Decode
// failures surface as per-field skips, not request errors, so this returns
// nil on any problem.
func decodeUpload(file *multipart.FileHeader) image.Image {
	if file == nil || file.Size > maxUploadSize {
		return nil
	}
	src, err := file.Open()
	if err != nil {
		return nil
	}
	defer src.Close()
	img, _, err := image.Decode(src)
	if err != nil {
		return nil
	}
	return img
}

// writePNG encodes img to dir/filename, creating dir if needed.
func writePNG(dir, filename string, img image.Image) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
