package utils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jomei/notionapi"

	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
)

// NewsPost is a published entry of the Notion news database.
type NewsPost struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Slug    string    `json:"slug"`
	Date    time.Time `json:"date"`
	Summary string    `json:"summary"`
	Cover   string    `json:"cover"`
}

type NewsSource interface {
	ListPosts(ctx context.Context) ([]NewsPost, error)
}

// News is the process-wide news feed.
var News NewsSource

// NotionClient reads the news database through the Notion SDK.
type NotionClient struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
}

func NewNotionClient(token, databaseID string, opts ...notionapi.ClientOption) *NotionClient {
	opts = append([]notionapi.ClientOption{notionapi.WithHTTPClient(defaultHTTPClient())}, opts...)
	return &NotionClient{
		client:     notionapi.NewClient(notionapi.Token(token), opts...),
		databaseID: notionapi.DatabaseID(databaseID),
	}
}

func plainText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return b.String()
}

func richText(props notionapi.Properties, name string) string {
	switch prop := props[name].(type) {
	case *notionapi.TitleProperty:
		return plainText(prop.Title)
	case *notionapi.RichTextProperty:
		return plainText(prop.RichText)
	}
	return ""
}

func fileURL(f *notionapi.FileObject) string {
	if f == nil {
		return ""
	}
	return f.URL
}

func postFromPage(page notionapi.Page) NewsPost {
	post := NewsPost{
		ID:      string(page.ID),
		Title:   richText(page.Properties, "Title"),
		Slug:    richText(page.Properties, "Slug"),
		Summary: richText(page.Properties, "Summary"),
	}
	if prop, ok := page.Properties["Date"].(*notionapi.DateProperty); ok && prop.Date != nil && prop.Date.Start != nil {
		post.Date = time.Time(*prop.Date.Start).UTC()
	}
	if page.Cover != nil {
		post.Cover = fileURL(page.Cover.External)
		if post.Cover == "" {
			post.Cover = fileURL(page.Cover.File)
		}
	}
	return post
}

// ListPosts pages through the published entries, newest first. Entries
// without a slug are drafts and are skipped.
func (n *NotionClient) ListPosts(ctx context.Context) ([]NewsPost, error) {
	req := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Published",
			Checkbox: &notionapi.CheckboxFilterCondition{Equals: true},
		},
		Sorts:    []notionapi.SortObject{{Property: "Date", Direction: notionapi.SortOrderDESC}},
		PageSize: 100,
	}

	var posts []NewsPost
	for {
		resp, err := n.client.Database.Query(ctx, n.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("notion: query news database: %w", err)
		}
		for _, page := range resp.Results {
			post := postFromPage(page)
			if post.Slug == "" {
				continue
			}
			posts = append(posts, post)
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return posts, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// CachedNews keeps the last successful listing for ttl. When a refresh
// fails the stale listing is served.
type CachedNews struct {
	source NewsSource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	posts     []NewsPost
	fetchedAt time.Time
}

func NewCachedNews(source NewsSource, ttl time.Duration) *CachedNews {
	return &CachedNews{source: source, ttl: ttl, now: time.Now}
}

func (c *CachedNews) ListPosts(ctx context.Context) ([]NewsPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.posts != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.posts, nil
	}

	posts, err := c.source.ListPosts(ctx)
	if err != nil {
		if c.posts != nil {
			logger.L().Warn("serving stale news feed", "error", err)
			return c.posts, nil
		}
		return nil, err
	}
	if posts == nil {
		posts = []NewsPost{}
	}
	c.posts = posts
	c.fetchedAt = c.now()
	return posts, nil
}
