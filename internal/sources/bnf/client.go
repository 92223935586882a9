// Package bnf implements the Bibliothèque nationale de France SRU client.
package bnf

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/sources/common"
)

const (
	defaultEndpoint  = "https://catalogue.bnf.fr/api/SRU"
	defaultUserAgent = "library-metasearch/1.0"
	recordSchema     = "dublincore"
)

type Config struct {
	Endpoint       string
	UserAgent      string
	MaximumRecords int
	Client         *http.Client
}

type Client struct {
	client         *http.Client
	endpoint       string
	userAgent      string
	maximumRecords int
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
	maxRecords := cfg.MaximumRecords
	if maxRecords <= 0 {
		maxRecords = 5
	}
	if maxRecords > 20 {
		maxRecords = 20
	}
	return &Client{
		client:         client,
		endpoint:       endpoint,
		userAgent:      userAgent,
		maximumRecords: maxRecords,
	}
}

func (c *Client) Name() domain.SourceName {
	return domain.SourceBnF
}

func (c *Client) SearchByISBN(ctx context.Context, isbn string) ([]domain.RawRecord, error) {
	normalized := common.NormalizeISBN(isbn)
	if normalized == "" {
		return nil, nil
	}
	query := fmt.Sprintf("(bib.isbn all %q)", normalized)
	return c.searchRetrieve(ctx, query)
}

func (c *Client) SearchByTitleAuthor(ctx context.Context, title, author string) ([]domain.RawRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	query := fmt.Sprintf("(bib.title all %q)", title)
	if author = strings.TrimSpace(author); author != "" {
		query += fmt.Sprintf(" and (bib.author all %q)", author)
	}
	return c.searchRetrieve(ctx, query)
}

func (c *Client) searchRetrieve(ctx context.Context, query string) ([]domain.RawRecord, error) {
	uri, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	params := uri.Query()
	params.Set("version", "1.2")
	params.Set("operation", "searchRetrieve")
	params.Set("recordSchema", recordSchema)
	params.Set("maximumRecords", fmt.Sprintf("%d", c.maximumRecords))
	params.Set("query", query)
	uri.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("sru HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}
	return parseSRUResponse(payload)
}

type sruResponse struct {
	XMLName     xml.Name        `xml:"searchRetrieveResponse"`
	Diagnostics []sruDiagnostic `xml:"diagnostics>diagnostic"`
	Records     []sruRecord     `xml:"records>record"`
}

type sruDiagnostic struct {
	Message string `xml:"message"`
}

type sruRecord struct {
	Data dcRecord `xml:"recordData>dc"`
}

// dcRecord matches the Dublin Core payload by local element name; the dc:
// namespace prefix is irrelevant to the decoder.
type dcRecord struct {
	Titles       []string `xml:"title"`
	Creators     []string `xml:"creator"`
	Publishers   []string `xml:"publisher"`
	Dates        []string `xml:"date"`
	Identifiers  []string `xml:"identifier"`
	Descriptions []string `xml:"description"`
}

func parseSRUResponse(payload []byte) ([]domain.RawRecord, error) {
	var parsed sruResponse
	if err := xml.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("unexpected sru payload: %w", err)
	}
	// A diagnostic element means the query itself was rejected; the catalog
	// reports "no hits" with an empty record list instead.
	if len(parsed.Diagnostics) > 0 {
		return nil, nil
	}

	records := make([]domain.RawRecord, 0, len(parsed.Records))
	for _, record := range parsed.Records {
		raw, ok := toRawRecord(record.Data)
		if !ok {
			continue
		}
		records = append(records, raw)
	}
	return records, nil
}

func toRawRecord(data dcRecord) (domain.RawRecord, bool) {
	title := firstNonEmpty(data.Titles)
	if title == "" {
		return domain.RawRecord{}, false
	}

	raw := domain.RawRecord{
		Source:        domain.SourceBnF,
		Title:         title,
		Authors:       append([]string(nil), data.Creators...),
		Publisher:     firstNonEmpty(data.Publishers),
		PublishedDate: firstNonEmpty(data.Dates),
		Summary:       firstNonEmpty(data.Descriptions),
	}

	if isbn := pickISBN(data.Identifiers); isbn != "" {
		raw.Identifiers = []domain.Identifier{{Kind: "ISBN", Value: isbn}}
	}
	return raw, true
}

// pickISBN scans dc:identifier values for a plausible ISBN. BnF emits them
// either bare or prefixed, e.g. "ISBN 978-2-07-061275-8".
func pickISBN(identifiers []string) string {
	for _, ident := range identifiers {
		value := strings.TrimSpace(ident)
		if lower := strings.ToLower(value); strings.HasPrefix(lower, "isbn") {
			value = strings.TrimSpace(strings.TrimLeft(value[4:], " :"))
		}
		if isbn := common.NormalizeISBN(value); isbn != "" {
			return isbn
		}
	}
	return ""
}

func firstNonEmpty(values []string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
