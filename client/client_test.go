package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/veratrail/veratrail"
)

func TestExportAuditTrailPagination(t *testing.T) {
	total := 250
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		page := veratrail.AuditPage{Total: int64(total), Limit: limit, Offset: offset}
		for i := offset; i < offset+limit && i < total; i++ {
			page.Entries = append(page.Entries, veratrail.AuditEntry{ID: strconv.Itoa(i)})
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	entries, err := c.ExportAuditTrail(context.Background(), "document", "d1")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(entries) != total {
		t.Fatalf("expected %d entries, got %d", total, len(entries))
	}
	if entries[0].ID != "0" || entries[total-1].ID != strconv.Itoa(total-1) {
		t.Fatalf("entries out of order")
	}
}

func TestGetDocumentCached(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(veratrail.Document{ID: "d1", Name: "SOP-1"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		doc, err := c.GetDocument(ctx, "d1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if doc.Name != "SOP-1" {
			t.Fatalf("unexpected document: %+v", doc)
		}
	}
	if hits != 1 {
		t.Fatalf("expected one upstream request, got %d", hits)
	}
}

func TestErrorEnvelopeSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(veratrail.APIError{Code: veratrail.CodeNotFound, Message: "document d9 not found"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.GetDocument(context.Background(), "d9")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "not_found: document d9 not found" {
		t.Fatalf("unexpected error text: %s", got)
	}
}
