package posts

import (
	"log"
	"strings"
	"sync/atomic"
)

// synonyms maps normalized type tokens to a category.
// Keys are lower-case with separators collapsed to a single space.
var synonyms = map[string]PostType{
	"image":        TypeImage,
	"images":       TypeImage,
	"static":       TypeImage,
	"static image": TypeImage,
	"staticimage":  TypeImage,
	"photo":        TypeImage,
	"photos":       TypeImage,
	"picture":      TypeImage,
	"pic":          TypeImage,
	"single image": TypeImage,

	"carousel":    TypeCarousel,
	"carousels":   TypeCarousel,
	"album":       TypeCarousel,
	"gallery":     TypeCarousel,
	"slideshow":   TypeCarousel,
	"sidecar":     TypeCarousel,
	"multi image": TypeCarousel,

	"reel":   TypeReel,
	"reels":  TypeReel,
	"video":  TypeReel,
	"videos": TypeReel,
	"short":  TypeReel,
	"shorts": TypeReel,
	"clip":   TypeReel,
	"igtv":   TypeReel,

	"text":   TypeText,
	"status": TypeText,
	"tweet":  TypeText,
	"thread": TypeText,
	"note":   TypeText,
	"post":   TypeText,
}

// Classifier maps free-text post type tokens onto the fixed PostType set.
// It is safe for concurrent use.
type Classifier struct {
	fallbacks atomic.Int64
}

// NewClassifier creates a new Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the category for raw. Unknown tokens, including the
// empty string, map to DefaultType and every such fallback is logged.
func (c *Classifier) Classify(raw string) PostType {
	key := normalizeToken(raw)
	if t, ok := synonyms[key]; ok {
		return t
	}
	c.fallbacks.Add(1)
	if key == "" {
		log.Printf("Missing post type, defaulting to %q", DefaultType)
	} else {
		log.Printf("Unrecognized post type %q, defaulting to %q", raw, DefaultType)
	}
	return DefaultType
}

// Fallbacks returns how many inputs have fallen back to DefaultType.
func (c *Classifier) Fallbacks() int {
	return int(c.fallbacks.Load())
}

// ParsePostType accepts canonical type names only.
func ParsePostType(s string) (PostType, bool) {
	t := PostType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
