package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/offsetpool/meshpool/internal/allocator"
	"github.com/offsetpool/meshpool/internal/reportschema"
)

// ReportSource is the minimal allocator surface a dashboard poller needs.
// Implemented directly by *allocator.Allocator; a real host wraps its
// allocator in a mutex and implements this interface over the locked
// access, which is why the methods are read-only.
type ReportSource interface {
	Report() allocator.SummaryReport
	ReportFull() allocator.FullReport
}

// lockedSource adapts an *allocator.Allocator plus an external mutex (the
// allocator itself is not concurrency-safe) into a ReportSource.
type lockedSource struct {
	mu *sync.Mutex
	a  *allocator.Allocator
}

// NewLockedReportSource builds a ReportSource that serializes access to a
// through mu, suitable when the same allocator is also being driven by a
// frame-loop goroutine.
func NewLockedReportSource(mu *sync.Mutex, a *allocator.Allocator) ReportSource {
	return &lockedSource{mu: mu, a: a}
}

func (l *lockedSource) Report() allocator.SummaryReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.a.Report()
}

func (l *lockedSource) ReportFull() allocator.FullReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.a.ReportFull()
}

// NewReportHandler serves /summary and /full as versioned reportschema
// envelopes over whatever transport the caller mounts it on (intended to be
// an HTTP3Server's Handler).
func NewReportHandler(source ReportSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/summary", func(w http.ResponseWriter, r *http.Request) {
		env, err := reportschema.EncodeSummary(source.Report())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		writeJSON(w, env)
	})

	mux.HandleFunc("/full", func(w http.ResponseWriter, r *http.Request) {
		env, err := reportschema.EncodeFull(source.ReportFull())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		writeJSON(w, env)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
