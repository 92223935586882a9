// Package openlibrary implements the OpenLibrary catalog client.
//
// Editions fetched by ISBN frequently omit author names and only carry
// work/author references; the client resolves those with secondary fetches
// before handing records to the aggregation core.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/sources/common"
)

const (
	defaultEndpoint  = "https://openlibrary.org"
	defaultCoversURL = "https://covers.openlibrary.org"
	defaultUserAgent = "library-metasearch/1.0"

	searchLimit        = 3
	maxAuthorFetches   = 3
	maxEditionsPerWork = 3
)

type Config struct {
	Endpoint  string
	CoversURL string
	UserAgent string
	Client    *http.Client
}

type Client struct {
	client    *http.Client
	endpoint  string
	coversURL string
	userAgent string
}

func NewClient(cfg Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	coversURL := strings.TrimRight(strings.TrimSpace(cfg.CoversURL), "/")
	if coversURL == "" {
		coversURL = defaultCoversURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		client:    client,
		endpoint:  endpoint,
		coversURL: coversURL,
		userAgent: userAgent,
	}
}

func (c *Client) Name() domain.SourceName {
	return domain.SourceOpenLibrary
}

type edition struct {
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	ByStatement string     `json:"by_statement"`
	Publishers  []string   `json:"publishers"`
	PublishDate string     `json:"publish_date"`
	Series      []string   `json:"series"`
	ISBN13      []string   `json:"isbn_13"`
	ISBN10      []string   `json:"isbn_10"`
	Covers      []int64    `json:"covers"`
	Works       []keyedRef `json:"works"`
}

type keyedRef struct {
	Key string `json:"key"`
}

type work struct {
	Authors []struct {
		Author keyedRef `json:"author"`
	} `json:"authors"`
}

type authorRecord struct {
	Name string `json:"name"`
}

type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	AuthorNames      []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverID          int64    `json:"cover_i"`
}

type editionsResponse struct {
	Entries []edition `json:"entries"`
}

func (c *Client) SearchByISBN(ctx context.Context, isbn string) ([]domain.RawRecord, error) {
	normalized := common.NormalizeISBN(isbn)
	if normalized == "" {
		return nil, nil
	}

	var ed edition
	found, err := c.getJSON(ctx, fmt.Sprintf("%s/isbn/%s.json", c.endpoint, normalized), &ed)
	if err != nil {
		return nil, err
	}
	if !found || strings.TrimSpace(ed.Title) == "" {
		return nil, nil
	}

	raw := c.editionToRaw(ed)
	if len(raw.Identifiers) == 0 {
		raw.Identifiers = []domain.Identifier{{Kind: "ISBN", Value: normalized}}
	}
	if len(raw.Authors) == 0 && len(ed.Works) > 0 {
		// Secondary lookup: edition -> work -> author names. Failures leave
		// the author list empty rather than failing the record.
		raw.Authors = c.resolveWorkAuthors(ctx, ed.Works[0].Key)
	}
	return []domain.RawRecord{raw}, nil
}

func (c *Client) SearchByTitleAuthor(ctx context.Context, title, author string) ([]domain.RawRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}

	uri := fmt.Sprintf("%s/search.json", c.endpoint)
	params := url.Values{}
	params.Set("title", title)
	if author = strings.TrimSpace(author); author != "" {
		params.Set("author", author)
	}
	params.Set("limit", strconv.Itoa(searchLimit))

	var parsed searchResponse
	found, err := c.getJSON(ctx, uri+"?"+params.Encode(), &parsed)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	records := make([]domain.RawRecord, 0, len(parsed.Docs))
	for _, doc := range parsed.Docs {
		if strings.TrimSpace(doc.Title) == "" {
			continue
		}
		if raw, ok := c.bestEditionFor(ctx, doc); ok {
			records = append(records, raw)
			continue
		}
		records = append(records, c.docToRaw(doc))
	}
	return records, nil
}

// bestEditionFor fetches the work's editions and maps the first one that
// carries a title, enriched with work-level author names.
func (c *Client) bestEditionFor(ctx context.Context, doc searchDoc) (domain.RawRecord, bool) {
	workKey := strings.TrimSpace(doc.Key)
	if workKey == "" {
		return domain.RawRecord{}, false
	}

	var parsed editionsResponse
	found, err := c.getJSON(ctx, fmt.Sprintf("%s%s/editions.json", c.endpoint, workKey), &parsed)
	if err != nil || !found {
		return domain.RawRecord{}, false
	}

	entries := parsed.Entries
	if len(entries) > maxEditionsPerWork {
		entries = entries[:maxEditionsPerWork]
	}
	for _, entry := range entries {
		if strings.TrimSpace(entry.Title) == "" {
			continue
		}
		raw := c.editionToRaw(entry)
		if len(raw.Authors) == 0 {
			raw.Authors = append([]string(nil), doc.AuthorNames...)
		}
		if raw.PublishedDate == "" && doc.FirstPublishYear > 0 {
			raw.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
		}
		return raw, true
	}
	return domain.RawRecord{}, false
}

func (c *Client) resolveWorkAuthors(ctx context.Context, workKey string) []string {
	workKey = strings.TrimSpace(workKey)
	if workKey == "" {
		return nil
	}
	var w work
	found, err := c.getJSON(ctx, fmt.Sprintf("%s%s.json", c.endpoint, workKey), &w)
	if err != nil || !found {
		return nil
	}

	names := make([]string, 0, len(w.Authors))
	for i, ref := range w.Authors {
		if i >= maxAuthorFetches {
			break
		}
		key := strings.TrimSpace(ref.Author.Key)
		if key == "" {
			continue
		}
		var record authorRecord
		found, err := c.getJSON(ctx, fmt.Sprintf("%s%s.json", c.endpoint, key), &record)
		if err != nil || !found {
			continue
		}
		if name := strings.TrimSpace(record.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (c *Client) editionToRaw(ed edition) domain.RawRecord {
	raw := domain.RawRecord{
		Source:        domain.SourceOpenLibrary,
		Title:         strings.TrimSpace(ed.Title),
		Subtitle:      strings.TrimSpace(ed.Subtitle),
		PublishedDate: strings.TrimSpace(ed.PublishDate),
	}
	if len(ed.Publishers) > 0 {
		raw.Publisher = strings.TrimSpace(ed.Publishers[0])
	}
	if len(ed.Series) > 0 {
		raw.Collection = strings.TrimSpace(ed.Series[0])
	}
	for _, isbn := range ed.ISBN13 {
		raw.Identifiers = append(raw.Identifiers, domain.Identifier{Kind: "ISBN_13", Value: strings.TrimSpace(isbn)})
	}
	for _, isbn := range ed.ISBN10 {
		raw.Identifiers = append(raw.Identifiers, domain.Identifier{Kind: "ISBN_10", Value: strings.TrimSpace(isbn)})
	}
	if by := strings.TrimSpace(ed.ByStatement); by != "" {
		raw.Authors = []string{by}
	}
	if len(ed.Covers) > 0 && ed.Covers[0] > 0 {
		raw.ThumbnailURL = fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversURL, ed.Covers[0])
	}
	return raw
}

func (c *Client) docToRaw(doc searchDoc) domain.RawRecord {
	raw := domain.RawRecord{
		Source:   domain.SourceOpenLibrary,
		Title:    strings.TrimSpace(doc.Title),
		Subtitle: strings.TrimSpace(doc.Subtitle),
		Authors:  append([]string(nil), doc.AuthorNames...),
	}
	if doc.FirstPublishYear > 0 {
		raw.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
	}
	if doc.CoverID > 0 {
		raw.ThumbnailURL = fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversURL, doc.CoverID)
	}
	return raw
}

// getJSON performs a GET and decodes the body. A 404 is reported as not
// found, not as an error, since OpenLibrary answers unknown ISBNs that way.
func (c *Client) getJSON(ctx context.Context, uri string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return false, fmt.Errorf("openlibrary HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4*1024*1024)).Decode(out); err != nil {
		return false, fmt.Errorf("unexpected openlibrary payload: %w", err)
	}
	return true, nil
}
