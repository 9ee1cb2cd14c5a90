package ingest

import (
	"bytes"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

var feedHeader = []string{"id", "type", "content", "date", "hashtags", "url"}

// parseFeed turns RSS/Atom items into rows. The post type is inferred from
// attached media: video gives a reel, several images a carousel, one image
// an image post, and no media a text post.
func parseFeed(data []byte, delim string) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, posts.ErrEmptyInput
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &posts.ParseError{Format: string(FormatFeed), Err: err}
	}

	rows := make([][]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		rows = append(rows, feedRow(item, delim))
	}
	return &Table{Header: feedHeader, Rows: rows}, nil
}

func feedRow(item *gofeed.Item, delim string) []string {
	id := item.GUID
	if id == "" {
		id = item.Link
	}

	var date string
	if item.PublishedParsed != nil {
		date = item.PublishedParsed.Format(posts.DateLayout)
	} else if item.UpdatedParsed != nil {
		date = item.UpdatedParsed.Format(posts.DateLayout)
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	content := strings.TrimSpace(item.Title)
	if text := plainText(body); text != "" && text != content {
		if content != "" {
			content += " "
		}
		content += text
	}

	tags := make([]string, 0, len(item.Categories))
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			tags = append(tags, c)
		}
	}

	return []string{id, string(feedMediaType(item)), content, date, strings.Join(tags, delim), item.Link}
}

func feedMediaType(item *gofeed.Item) posts.PostType {
	images, videos := 0, 0
	count := func(mimeType, medium string) {
		switch {
		case strings.HasPrefix(mimeType, "video/") || medium == "video":
			videos++
		case strings.HasPrefix(mimeType, "image/") || medium == "image":
			images++
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil {
			count(strings.ToLower(enc.Type), "")
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			count(strings.ToLower(ext.Attrs["type"]), strings.ToLower(ext.Attrs["medium"]))
		}
	}
	if images == 0 && item.Image != nil && item.Image.URL != "" {
		images++
	}

	switch {
	case videos > 0:
		return posts.TypeReel
	case images > 1:
		return posts.TypeCarousel
	case images == 1:
		return posts.TypeImage
	}
	return posts.TypeText
}
