// Package googlebooks implements the Google Books volumes API client.
package googlebooks

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
)

const (
	defaultEndpoint  = "https://www.googleapis.com/books/v1/volumes"
	defaultUserAgent = "library-metasearch/1.0"
	maxResults       = 5
)

type Config struct {
	Endpoint  string
	UserAgent string
	APIKey    string
	Client    *http.Client
}

type Client struct {
	client    *http.Client
	endpoint  string
	userAgent string
	apiKey    string
}

func NewClient(cfg Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		client:    client,
		endpoint:  endpoint,
		userAgent: userAgent,
		apiKey:    strings.TrimSpace(cfg.APIKey),
	}
}

func (c *Client) Name() domain.SourceName {
	return domain.SourceGoogleBooks
}

func (c *Client) SearchByISBN(ctx context.Context, isbn string) ([]domain.RawRecord, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return nil, nil
	}
	return c.volumes(ctx, "isbn:"+isbn)
}

func (c *Client) SearchByTitleAuthor(ctx context.Context, title, author string) ([]domain.RawRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	query := fmt.Sprintf("intitle:%q", title)
	if author = strings.TrimSpace(author); author != "" {
		query += fmt.Sprintf("+inauthor:%q", author)
	}
	return c.volumes(ctx, query)
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string           `json:"title"`
	Subtitle            string           `json:"subtitle"`
	Authors             []string         `json:"authors"`
	Publisher           string           `json:"publisher"`
	PublishedDate       string           `json:"publishedDate"`
	Description         string           `json:"description"`
	IndustryIdentifiers []industryIdent  `json:"industryIdentifiers"`
	ImageLinks          volumeImageLinks `json:"imageLinks"`
}

type industryIdent struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type volumeImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

func (c *Client) volumes(ctx context.Context, query string) ([]domain.RawRecord, error) {
	uri, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	params := uri.Query()
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("printType", "books")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	uri.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("volumes HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed volumesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4*1024*1024)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("unexpected volumes payload: %w", err)
	}

	records := make([]domain.RawRecord, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		raw, ok := toRawRecord(item.VolumeInfo)
		if !ok {
			continue
		}
		records = append(records, raw)
	}
	return records, nil
}

func toRawRecord(info volumeInfo) (domain.RawRecord, bool) {
	title := strings.TrimSpace(info.Title)
	if title == "" {
		return domain.RawRecord{}, false
	}

	identifiers := make([]domain.Identifier, 0, len(info.IndustryIdentifiers))
	for _, ident := range info.IndustryIdentifiers {
		value := strings.TrimSpace(ident.Identifier)
		if value == "" {
			continue
		}
		identifiers = append(identifiers, domain.Identifier{Kind: ident.Type, Value: value})
	}

	thumbnail := strings.TrimSpace(info.ImageLinks.Thumbnail)
	if thumbnail == "" {
		thumbnail = strings.TrimSpace(info.ImageLinks.SmallThumbnail)
	}

	return domain.RawRecord{
		Source:        domain.SourceGoogleBooks,
		Title:         title,
		Subtitle:      strings.TrimSpace(info.Subtitle),
		Authors:       append([]string(nil), info.Authors...),
		Identifiers:   identifiers,
		PublishedDate: strings.TrimSpace(info.PublishedDate),
		Publisher:     strings.TrimSpace(info.Publisher),
		Description:   strings.TrimSpace(info.Description),
		ThumbnailURL:  thumbnail,
	}, true
}
