package compose

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// ErrUnknownFont is returned by resolvers when a family token cannot be
// mapped to a font resource. The compositor treats it as a signal to fall
// back to the default face, not as a field failure.
var ErrUnknownFont = errors.New("compose: unknown font family")

// FontResolver maps a font-family token to raw TTF/OTF bytes.
type FontResolver interface {
	Resolve(family string) ([]byte, error)
}

// DirResolver resolves font families against .ttf/.otf files in a directory.
// The family token is lowercased; "Open Sans" resolves to open-sans.ttf.
type DirResolver struct {
	Dir string
}

func (r DirResolver) Resolve(family string) ([]byte, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(family)), " ", "-")
	if name == "" {
		return nil, ErrUnknownFont
	}
	for _, ext := range []string{".ttf", ".otf"} {
		data, err := os.ReadFile(filepath.Join(r.Dir, name+ext))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read font %s%s: %w", name, ext, err)
		}
	}
	return nil, ErrUnknownFont
}

const (
	faceCacheTTL     = time.Hour
	faceCacheCleanup = 10 * time.Minute
	fontDPI          = 72
)

// faceCache parses fonts lazily and caches font.Face values per
// family+size, so repeated composites don't re-parse TTF data.
type faceCache struct {
	resolver FontResolver
	cache    *gocache.Cache
}

func newFaceCache(resolver FontResolver) *faceCache {
	return &faceCache{
		resolver: resolver,
		cache:    gocache.New(faceCacheTTL, faceCacheCleanup),
	}
}

// Face returns a font face for the family at the given size, falling back
// to the bundled default when the family is empty or unresolvable.
func (fc *faceCache) Face(family string, size float64) (font.Face, error) {
	if family == "" || fc.resolver == nil {
		return defaultFace(size)
	}

	key := fmt.Sprintf("%s|%g", strings.ToLower(family), size)
	if cached, ok := fc.cache.Get(key); ok {
		return cached.(font.Face), nil
	}

	data, err := fc.resolver.Resolve(family)
	if err != nil {
		if errors.Is(err, ErrUnknownFont) {
			return defaultFace(size)
		}
		return nil, err
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %q: %w", family, err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build face %q: %w", family, err)
	}
	fc.cache.Set(key, face, gocache.DefaultExpiration)
	return face, nil
}

var defaultFont struct {
	once sync.Once
	font *opentype.Font
	err  error
}

// defaultFace builds a face from the bundled Go Regular font. Parsing
// happens once per process; faces are cheap after that.
func defaultFace(size float64) (font.Face, error) {
	defaultFont.once.Do(func() {
		defaultFont.font, defaultFont.err = opentype.Parse(goregular.TTF)
	})
	if defaultFont.err != nil {
		return nil, fmt.Errorf("parse default font: %w", defaultFont.err)
	}
	return opentype.NewFace(defaultFont.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
}
