package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Logical font families the renderer draws with.
const (
	FamilySans     = "sans"
	FamilySansBold = "sans-bold"
)

// Registry loads fonts from disk by logical family name, caching the parsed
// font. When a configured file is missing or unparseable the embedded Go
// fonts take over, so rendering keeps working on hosts without the fonts
// installed.
type Registry struct {
	dir       string
	files     map[string]string
	fallbacks map[string][]byte

	mu    sync.Mutex
	cache map[string]*opentype.Font
}

// NewRegistry maps the sans and sans-bold families to font files under dir.
func NewRegistry(dir, regular, bold string) *Registry {
	return &Registry{
		dir: dir,
		files: map[string]string{
			FamilySans:     regular,
			FamilySansBold: bold,
		},
		fallbacks: map[string][]byte{
			FamilySans:     goregular.TTF,
			FamilySansBold: gobold.TTF,
		},
		cache: make(map[string]*opentype.Font),
	}
}

// Face builds a font.Face for the family at the given point size. Faces are
// not safe for concurrent use, so each caller gets its own.
func (r *Registry) Face(family string, size float64) (font.Face, error) {
	fnt, err := r.load(family)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, &Error{Kind: KindFontUnavailable, Message: fmt.Sprintf("face %s at %.1fpt: %v", family, size, err)}
	}
	return face, nil
}

func (r *Registry) load(family string) (*opentype.Font, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.cache[family]; ok {
		return f, nil
	}

	file := r.files[family]
	if file != "" {
		data, err := os.ReadFile(filepath.Join(r.dir, file))
		if err == nil {
			f, perr := opentype.Parse(data)
			if perr == nil {
				r.cache[family] = f
				return f, nil
			}
			err = perr
		}
		log.Warn().Err(err).Str("family", family).Str("file", file).Msg("configured font unusable, using embedded fallback")
	}

	fb := r.fallbacks[family]
	if len(fb) == 0 {
		return nil, &Error{Kind: KindFontUnavailable, Message: fmt.Sprintf("font family %s: no file and no fallback", family)}
	}
	f, err := opentype.Parse(fb)
	if err != nil {
		return nil, &Error{Kind: KindFontUnavailable, Message: fmt.Sprintf("embedded fallback for %s: %v", family, err)}
	}
	r.cache[family] = f
	return f, nil
}
