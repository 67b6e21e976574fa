package scraper

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"mindpattern/internal/domain"
)

// Feed reads journal entries from RSS or Atom feeds.
type Feed struct {
	client *http.Client
	parser *gofeed.Parser
}

func NewFeed() *Feed {
	return &Feed{
		client: &http.Client{Timeout: 15 * time.Second},
		parser: gofeed.NewParser(),
	}
}

func (f *Feed) Scrape(ctx context.Context, feedURL string) ([]domain.Submission, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "mindpattern/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	subs := make([]domain.Submission, 0, len(feed.Items))
	for _, item := range feed.Items {
		text := entryText(item)
		if text == "" {
			continue
		}

		createdAt := time.Now().UTC()
		if item.PublishedParsed != nil {
			createdAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			createdAt = item.UpdatedParsed.UTC()
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}

		author := feed.Title
		if item.Author != nil && item.Author.Name != "" {
			author = item.Author.Name
		}

		subs = append(subs, domain.Submission{
			ID:         generateID(feedURL + "|" + guid),
			ExternalID: guid,
			Author:     author,
			Text:       text,
			Link:       item.Link,
			Source:     domain.SourceFeed,
			CreatedAt:  createdAt,
		})
	}

	return subs, nil
}

// entryText prefers the full content, then the summary, then the title.
func entryText(item *gofeed.Item) string {
	for _, body := range []string{item.Content, item.Description} {
		if text := htmlText(body); text != "" {
			return text
		}
	}
	return strings.TrimSpace(item.Title)
}

func htmlText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()
	doc.Find("p, div, br, li, blockquote, h1, h2, h3, h4, h5, h6").AfterHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func generateID(guid string) string {
	hash := md5.Sum([]byte(guid))
	return fmt.Sprintf("%x", hash)[:12]
}
