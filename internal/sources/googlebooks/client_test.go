package googlebooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"librarium/metasearchservice/internal/domain"
)

const volumesPayload = `{
  "totalItems": 2,
  "items": [
    {
      "volumeInfo": {
        "title": "Dune",
        "subtitle": "A Novel",
        "authors": ["Frank Herbert"],
        "publisher": "Ace Books",
        "publishedDate": "1965-08-01",
        "description": "Paul Atreides on Arrakis.",
        "industryIdentifiers": [
          {"type": "ISBN_10", "identifier": "0441013597"},
          {"type": "ISBN_13", "identifier": "9780441013593"}
        ],
        "imageLinks": {
          "smallThumbnail": "https://books.example/dune-small.jpg",
          "thumbnail": "https://books.example/dune.jpg"
        }
      }
    },
    {
      "volumeInfo": {
        "title": ""
      }
    }
  ]
}`

func TestSearchByISBNQueriesVolumes(t *testing.T) {
	var gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(volumesPayload))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, APIKey: "secret", Client: server.Client()})
	records, err := client.SearchByISBN(context.Background(), "9780441013593")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "isbn:9780441013593" {
		t.Errorf("unexpected query: %q", gotQuery)
	}
	if gotKey != "secret" {
		t.Errorf("expected the api key on the request, got %q", gotKey)
	}
	if len(records) != 1 {
		t.Fatalf("title-less volumes must be dropped: got %d records", len(records))
	}
	record := records[0]
	if record.Source != domain.SourceGoogleBooks || record.Title != "Dune" || record.Subtitle != "A Novel" {
		t.Errorf("unexpected record: %+v", record)
	}
	if len(record.Identifiers) != 2 || record.Identifiers[1].Kind != "ISBN_13" {
		t.Errorf("expected both identifiers kept: %v", record.Identifiers)
	}
	if record.ThumbnailURL != "https://books.example/dune.jpg" {
		t.Errorf("expected the full-size thumbnail preferred, got %q", record.ThumbnailURL)
	}
}

func TestSearchByTitleAuthorQuery(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	records, err := client.SearchByTitleAuthor(context.Background(), "Dune", "Herbert")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `intitle:"Dune"+inauthor:"Herbert"`; gotQuery != want {
		t.Errorf("unexpected query: got %q, want %q", gotQuery, want)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestSmallThumbnailFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
  "totalItems": 1,
  "items": [{"volumeInfo": {"title": "Dune", "imageLinks": {"smallThumbnail": "https://books.example/small.jpg"}}}]
}`))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	records, err := client.SearchByISBN(context.Background(), "9780441013593")
	if err != nil || len(records) != 1 {
		t.Fatalf("unexpected result: %v, %v", records, err)
	}
	if records[0].ThumbnailURL != "https://books.example/small.jpg" {
		t.Errorf("expected the small thumbnail fallback, got %q", records[0].ThumbnailURL)
	}
}

func TestHTTPErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	if _, err := client.SearchByISBN(context.Background(), "9780441013593"); err == nil {
		t.Fatal("expected an error for a 429 response")
	}
}

func TestBlankInputsSkipTheNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	if records, err := client.SearchByISBN(context.Background(), "  "); err != nil || records != nil {
		t.Fatalf("expected nil, nil for a blank isbn, got %v, %v", records, err)
	}
	if records, err := client.SearchByTitleAuthor(context.Background(), "", "Herbert"); err != nil || records != nil {
		t.Fatalf("expected nil, nil for a blank title, got %v, %v", records, err)
	}
}
