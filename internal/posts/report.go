package posts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// ReportFilename is the download name of the text report.
const ReportFilename = "analytics_report.txt"

// ReportOptions controls report generation.
type ReportOptions struct {
	GeneratedAt  time.Time
	TopPosts     int // number of posts in the Top Posts section; 0 omits it
	PreviewWidth int
}

// FormatReport renders aggregate rows and the underlying posts as a
// plain-text report. Categories with no posts are shown with 0.00 averages.
func FormatReport(rows []AggregateRow, raw []Post, opts ReportOptions) string {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	if opts.PreviewWidth <= 0 {
		opts.PreviewWidth = 48
	}

	var b strings.Builder
	b.WriteString("Social Media Analytics Report\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", opts.GeneratedAt.Format(DateLayout))

	totals := reportTotals(rows, raw)
	writeHeading(&b, "Overall Performance")
	writeAligned(&b, "", [][2]string{
		{"Total Posts:", fmt.Sprint(totals.Posts)},
		{"Total Likes:", fmt.Sprint(totals.Likes)},
		{"Total Shares:", fmt.Sprint(totals.Shares)},
		{"Total Comments:", fmt.Sprint(totals.Comments)},
	})
	b.WriteString("\n")

	writeHeading(&b, "Performance by Post Type")
	sums := sumByType(raw)
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		likes, shares, comments := categoryAverages(row, sums[row.PostType])
		fmt.Fprintf(&b, "%s:\n", strings.ToUpper(string(row.PostType)))
		writeAligned(&b, "   ", [][2]string{
			{"Posts:", fmt.Sprint(row.TotalPosts)},
			{"Avg. Likes:", fmt.Sprintf("%.2f", likes)},
			{"Avg. Shares:", fmt.Sprintf("%.2f", shares)},
			{"Avg. Comments:", fmt.Sprintf("%.2f", comments)},
		})
	}

	if opts.TopPosts > 0 && len(raw) > 0 {
		b.WriteString("\n")
		writeHeading(&b, "Top Posts")
		for i, p := range topPosts(raw, opts.TopPosts) {
			preview := strings.Join(strings.Fields(p.Content), " ")
			if preview == "" {
				preview = p.ID
			}
			preview = runewidth.Truncate(preview, opts.PreviewWidth, "...")
			fmt.Fprintf(&b, "%2d. %s %7d  %s\n", i+1, runewidth.FillRight(p.Type.Label(), 8), p.Engagement(), preview)
		}
	}

	return b.String()
}

func writeHeading(b *strings.Builder, title string) {
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", runewidth.StringWidth(title)) + "\n")
}

// writeAligned writes label/value pairs with values aligned by display width.
func writeAligned(b *strings.Builder, indent string, pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		if w := runewidth.StringWidth(p[0]); w > width {
			width = w
		}
	}
	for _, p := range pairs {
		fmt.Fprintf(b, "%s%s %s\n", indent, runewidth.FillRight(p[0], width), p[1])
	}
}

type typeSums struct {
	likes, shares, comments, count int
}

func sumByType(raw []Post) map[PostType]typeSums {
	sums := make(map[PostType]typeSums, len(AllTypes))
	for _, p := range raw {
		s := sums[p.Type]
		s.likes += p.Likes
		s.shares += p.Shares
		s.comments += p.Comments
		s.count++
		sums[p.Type] = s
	}
	return sums
}

// categoryAverages prefers exact means from raw posts and falls back to the
// rounded row averages when no raw posts were supplied.
func categoryAverages(row AggregateRow, s typeSums) (likes, shares, comments float64) {
	if s.count > 0 {
		n := float64(s.count)
		return float64(s.likes) / n, float64(s.shares) / n, float64(s.comments) / n
	}
	if row.TotalPosts > 0 {
		return float64(row.AvgLikes), float64(row.AvgShares), float64(row.AvgComments)
	}
	return 0, 0, 0
}

func reportTotals(rows []AggregateRow, raw []Post) Totals {
	if len(raw) > 0 {
		return ComputeTotals(raw)
	}
	var t Totals
	for _, r := range rows {
		t.Posts += r.TotalPosts
		t.Likes += r.AvgLikes * r.TotalPosts
		t.Shares += r.AvgShares * r.TotalPosts
		t.Comments += r.AvgComments * r.TotalPosts
	}
	return t
}

func topPosts(raw []Post, n int) []Post {
	sorted := make([]Post, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Engagement() > sorted[j].Engagement()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
