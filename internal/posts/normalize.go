package posts

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Defaults applied to extended fields when the input leaves them out.
const (
	DefaultPlatform           = "Instagram"
	DefaultSentiment          = "neutral"
	DefaultPeakEngagementTime = "12:00"
	DefaultHashtagDelimiter   = ";"
)

// DateLayout is the ISO date layout used for defaulted dates.
const DateLayout = "2006-01-02"

var (
	numberPrefix  = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)
	groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(?:,\d{3})+(?:\.\d+)?`)
)

// maxCount is the largest count kept as is; bigger counts are clamped to it.
// It stays within int on every platform and is exact as a float64.
var maxCount = math.Min(float64(math.MaxInt), 1<<53)

// Normalizer turns raw rows into canonical posts. It never fails on
// malformed field values; those degrade to documented defaults.
type Normalizer struct {
	classifier *Classifier
	delimiter  string
	now        func() time.Time
	newID      func() string
}

// NewNormalizer creates a normalizer splitting hashtag cells on delimiter.
// An empty delimiter selects DefaultHashtagDelimiter.
func NewNormalizer(classifier *Classifier, delimiter string) *Normalizer {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if delimiter == "" {
		delimiter = DefaultHashtagDelimiter
	}
	return &Normalizer{
		classifier: classifier,
		delimiter:  delimiter,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// WithClock overrides the clock used for defaulted dates.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Classifier returns the classifier used for type fields.
func (n *Normalizer) Classifier() *Classifier {
	return n.classifier
}

// Delimiter returns the hashtag sub-delimiter.
func (n *Normalizer) Delimiter() string {
	return n.delimiter
}

// Normalize builds a Post from one row using the column index.
func (n *Normalizer) Normalize(row []string, idx ColumnIndex) Post {
	get := func(f Field) string {
		v, _ := idx.Lookup(row, f)
		return v
	}

	content := get(FieldContent)
	p := Post{
		ID:                 get(FieldID),
		Type:               n.classifier.Classify(get(FieldType)),
		Content:            content,
		Likes:              ParseCount(get(FieldLikes)),
		Shares:             ParseCount(get(FieldShares)),
		Comments:           ParseCount(get(FieldComments)),
		Views:              ParseCount(get(FieldViews)),
		Saves:              ParseCount(get(FieldSaves)),
		EngagementRate:     ParseRate(get(FieldEngagementRate)),
		Hashtags:           SplitHashtags(get(FieldHashtags), n.delimiter),
		Date:               get(FieldDate),
		ContentLength:      ParseCount(get(FieldContentLength)),
		Platform:           get(FieldPlatform),
		Sentiment:          get(FieldSentiment),
		PeakEngagementTime: get(FieldPeakEngagementTime),
		URL:                get(FieldURL),
	}
	n.fillDefaults(&p)
	return p
}

// FromEntry builds a Post from a manual-entry form. Unlike file rows, an
// explicit type must be one of the canonical names.
func (n *Normalizer) FromEntry(e Entry) (Post, error) {
	t := DefaultType
	if strings.TrimSpace(e.Type) != "" {
		parsed, ok := ParsePostType(e.Type)
		if !ok {
			return Post{}, fmt.Errorf("%w: unknown post type %q", ErrInvalidEntry, e.Type)
		}
		t = parsed
	}

	p := Post{
		ID:                 strings.TrimSpace(e.ID),
		Type:               t,
		Content:            strings.TrimSpace(e.Content),
		Likes:              ParseCount(e.Likes),
		Shares:             ParseCount(e.Shares),
		Comments:           ParseCount(e.Comments),
		Views:              ParseCount(e.Views),
		Saves:              ParseCount(e.Saves),
		EngagementRate:     ParseRate(e.EngagementRate),
		Hashtags:           SplitHashtags(e.Hashtags, ","),
		Date:               strings.TrimSpace(e.Date),
		Platform:           strings.TrimSpace(e.Platform),
		Sentiment:          strings.TrimSpace(e.Sentiment),
		PeakEngagementTime: strings.TrimSpace(e.PeakEngagementTime),
	}
	n.fillDefaults(&p)
	return p, nil
}

func (n *Normalizer) fillDefaults(p *Post) {
	if p.ID == "" {
		p.ID = n.newID()
	}
	if p.Date == "" {
		p.Date = n.now().Format(DateLayout)
	}
	if p.ContentLength <= 0 {
		p.ContentLength = utf8.RuneCountInString(p.Content)
	}
	if p.Hashtags == nil {
		p.Hashtags = []string{}
	}
	if p.Platform == "" {
		p.Platform = DefaultPlatform
	}
	if p.Sentiment == "" {
		p.Sentiment = DefaultSentiment
	}
	if p.PeakEngagementTime == "" {
		p.PeakEngagementTime = DefaultPeakEngagementTime
	}
}

// ParseCount parses a non-negative integer count. It accepts a leading
// numeric prefix ("12", "12.7", "12 likes"), exponent notation ("1e3") and
// comma-grouped thousands ("1,234"). Counts beyond maxCount are clamped.
// Anything else, including negatives, yields 0.
func ParseCount(s string) int {
	f, ok := parseNumber(s)
	if !ok || f < 0 {
		return 0
	}
	return int(min(f, maxCount))
}

// ParseRate parses a non-negative rate, allowing a trailing percent sign.
// Anything unparseable, negative or non-finite yields 0.
func ParseRate(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, ok := parseNumber(s)
	if !ok || f < 0 {
		return 0
	}
	return f
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if m := groupedNumber.FindString(s); m != "" {
		s = strings.ReplaceAll(m, ",", "")
	} else if m := numberPrefix.FindString(s); m != "" {
		s = m
	} else {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// SplitHashtags splits a hashtag cell on delim into trimmed, non-empty tags.
func SplitHashtags(s, delim string) []string {
	tags := []string{}
	if strings.TrimSpace(s) == "" {
		return tags
	}
	for _, tag := range strings.Split(s, delim) {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
