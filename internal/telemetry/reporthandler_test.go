package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/offsetpool/meshpool/internal/allocator"
	"github.com/offsetpool/meshpool/internal/reportschema"
)

func TestReportHandlerSummary(t *testing.T) {
	a, err := allocator.New(1024)
	if err != nil {
		t.Fatalf("allocator.New: %v", err)
	}

	if _, err := a.Allocate(100); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	var mu sync.Mutex

	h := NewReportHandler(NewLockedReportSource(&mu, a))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var env reportschema.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}

	summary, err := reportschema.DecodeSummary(env)
	if err != nil {
		t.Fatalf("DecodeSummary: %v", err)
	}

	if summary.TotalFreeSpace != 924 {
		t.Errorf("TotalFreeSpace = %d, want 924", summary.TotalFreeSpace)
	}
}

func TestReportHandlerFull(t *testing.T) {
	a, err := allocator.New(1024)
	if err != nil {
		t.Fatalf("allocator.New: %v", err)
	}

	var mu sync.Mutex

	h := NewReportHandler(NewLockedReportSource(&mu, a))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/full", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var env reportschema.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}

	if _, err := reportschema.DecodeFull(env); err != nil {
		t.Fatalf("DecodeFull: %v", err)
	}
}
