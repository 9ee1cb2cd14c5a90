package posts

import "strings"

// PostType is the category a post is grouped under for aggregation.
type PostType string

const (
	TypeImage    PostType = "image"
	TypeCarousel PostType = "carousel"
	TypeReel     PostType = "reel"
	TypeText     PostType = "text"
)

// DefaultType is the category unrecognized type strings fall back to.
const DefaultType = TypeText

// AllTypes lists every PostType in declaration order.
// Aggregates and reports are emitted in this order.
var AllTypes = []PostType{TypeImage, TypeCarousel, TypeReel, TypeText}

// Label returns a human-readable name for the type.
func (t PostType) Label() string {
	switch t {
	case TypeImage:
		return "Image"
	case TypeCarousel:
		return "Carousel"
	case TypeReel:
		return "Reel"
	case TypeText:
		return "Text"
	case "":
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Post is a canonical social-media post record after normalization.
type Post struct {
	ID                 string   `json:"id"`
	Type               PostType `json:"type"`
	Content            string   `json:"content"`
	Likes              int      `json:"likes"`
	Shares             int      `json:"shares"`
	Comments           int      `json:"comments"`
	Views              int      `json:"views"`
	Saves              int      `json:"saves"`
	EngagementRate     float64  `json:"engagementRate"`
	Hashtags           []string `json:"hashtags"`
	Date               string   `json:"date"`
	ContentLength      int      `json:"contentLength"`
	Platform           string   `json:"platform"`
	Sentiment          string   `json:"sentimentScore"`
	PeakEngagementTime string   `json:"peakEngagementTime"`
	URL                string   `json:"url,omitempty"`
}

// Engagement returns likes + shares + comments.
func (p Post) Engagement() int {
	return p.Likes + p.Shares + p.Comments
}

// AggregateRow holds per-category summary statistics.
type AggregateRow struct {
	PostType    PostType `json:"postType"`
	AvgLikes    int      `json:"avgLikes"`
	AvgShares   int      `json:"avgShares"`
	AvgComments int      `json:"avgComments"`
	TotalPosts  int      `json:"totalPosts"`
}

// Totals are grand totals across all categories.
type Totals struct {
	Posts             int     `json:"posts"`
	Likes             int     `json:"likes"`
	Shares            int     `json:"shares"`
	Comments          int     `json:"comments"`
	Views             int     `json:"views"`
	Saves             int     `json:"saves"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
}

// Entry is a manual-entry form submission. Fields are bound by name,
// so no header lookup is involved.
type Entry struct {
	ID                 string
	Type               string
	Content            string
	Likes              string
	Shares             string
	Comments           string
	Views              string
	Saves              string
	EngagementRate     string
	Hashtags           string
	Date               string
	Platform           string
	Sentiment          string
	PeakEngagementTime string
}
