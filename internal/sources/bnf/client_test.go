package bnf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"librarium/metasearchservice/internal/domain"
)

const sruPayload = `<?xml version="1.0" encoding="UTF-8"?>
<srw:searchRetrieveResponse xmlns:srw="http://www.loc.gov/zing/srw/">
  <srw:version>1.2</srw:version>
  <srw:numberOfRecords>1</srw:numberOfRecords>
  <srw:records>
    <srw:record>
      <srw:recordSchema>dublincore</srw:recordSchema>
      <srw:recordData>
        <oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
          <dc:title>Les Misérables</dc:title>
          <dc:creator>Hugo, Victor (1802-1885). Auteur du texte</dc:creator>
          <dc:publisher>Gallimard</dc:publisher>
          <dc:date>1951</dc:date>
          <dc:identifier>ISBN 978-2-07-061275-8</dc:identifier>
          <dc:description>Roman.</dc:description>
        </oai_dc:dc>
      </srw:recordData>
    </srw:record>
  </srw:records>
</srw:searchRetrieveResponse>`

const sruDiagnosticPayload = `<?xml version="1.0" encoding="UTF-8"?>
<srw:searchRetrieveResponse xmlns:srw="http://www.loc.gov/zing/srw/">
  <srw:version>1.2</srw:version>
  <srw:diagnostics>
    <diagnostic xmlns="http://www.loc.gov/zing/srw/diagnostic/">
      <message>Query syntax error</message>
    </diagnostic>
  </srw:diagnostics>
</srw:searchRetrieveResponse>`

func TestSearchByISBNParsesRecords(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		if got := r.URL.Query().Get("recordSchema"); got != "dublincore" {
			t.Errorf("unexpected recordSchema %q", got)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sruPayload))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	records, err := client.SearchByISBN(context.Background(), "978-2-07-061275-8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != `(bib.isbn all "9782070612758")` {
		t.Errorf("unexpected sru query: %s", gotQuery)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	record := records[0]
	if record.Source != domain.SourceBnF {
		t.Errorf("unexpected source: %s", record.Source)
	}
	if record.Title != "Les Misérables" {
		t.Errorf("unexpected title: %q", record.Title)
	}
	if len(record.Authors) != 1 || record.Authors[0] != "Hugo, Victor (1802-1885). Auteur du texte" {
		t.Errorf("authors must stay raw for the normalizer: %v", record.Authors)
	}
	if record.Publisher != "Gallimard" || record.PublishedDate != "1951" {
		t.Errorf("unexpected publisher/date: %q %q", record.Publisher, record.PublishedDate)
	}
	if len(record.Identifiers) != 1 || record.Identifiers[0].Value != "9782070612758" {
		t.Errorf("unexpected identifiers: %v", record.Identifiers)
	}
	if record.Summary != "Roman." {
		t.Errorf("unexpected summary: %q", record.Summary)
	}
}

func TestSearchByTitleAuthorBuildsQuery(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		w.Write([]byte(sruPayload))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	if _, err := client.SearchByTitleAuthor(context.Background(), "Les Misérables", "Hugo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `(bib.title all "Les Misérables") and (bib.author all "Hugo")`
	if gotQuery != want {
		t.Errorf("unexpected sru query:\n got %s\nwant %s", gotQuery, want)
	}
}

func TestDiagnosticResponseMeansNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sruDiagnosticPayload))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	records, err := client.SearchByISBN(context.Background(), "9782070612758")
	if err != nil {
		t.Fatalf("diagnostics are not transport errors: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestHTTPErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	if _, err := client.SearchByISBN(context.Background(), "9782070612758"); err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}

func TestBlankInputsSkipTheNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Client: server.Client()})
	if records, err := client.SearchByISBN(context.Background(), "garbage"); err != nil || records != nil {
		t.Fatalf("expected nil, nil for an unusable isbn, got %v, %v", records, err)
	}
	if records, err := client.SearchByTitleAuthor(context.Background(), "  ", "Hugo"); err != nil || records != nil {
		t.Fatalf("expected nil, nil for a blank title, got %v, %v", records, err)
	}
}
