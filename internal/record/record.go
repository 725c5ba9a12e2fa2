// Package record defines the per-subject time-series record log: the domain
// types, the Store contract both backends implement, and the filter and
// pagination semantics shared by the query surface and the ingestion pass.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// KindWeather is the record kind written by the ingestion scheduler. The
// store itself is kind-agnostic; callers may write any kind tag.
const KindWeather = "weather"

var (
	// ErrNotFound is returned when a record does not exist or does not
	// belong to the requesting subject. Callers cannot distinguish the two.
	ErrNotFound = errors.New("record not found")
)

// Subject is the owner of a series of records. Subjects are created and
// deleted by an external registration flow; this package only reads them.
type Subject struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Record is one immutable, timestamped, kind-tagged payload in a subject's
// log. Identifier and timestamp are assigned by the store at append time;
// deletion is the only mutation.
type Record struct {
	ID        int64           `json:"id"`
	SubjectID int64           `json:"user_id"`
	Kind      string          `json:"record_type"`
	Payload   json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Filter narrows a Query call. Zero-value fields are not applied. Start and
// End bound the timestamp inclusively.
type Filter struct {
	Kind    string
	Start   *time.Time
	End     *time.Time
	Page    int
	PerPage int
}

// Page is one page of query results ordered by timestamp descending, ties
// broken by id descending.
type Page struct {
	Records   []Record `json:"records"`
	Total     int      `json:"total"`
	PageCount int      `json:"pages"`
	Page      int      `json:"page"`
	PerPage   int      `json:"per_page"`
}

// Store is the contract for the record log. Implementations must make
// Append atomic and must not leak foreign records through Delete.
type Store interface {
	// Append persists a new record for the subject and returns it with the
	// store-assigned id and timestamp.
	Append(ctx context.Context, subjectID int64, kind string, payload json.RawMessage) (Record, error)

	// Latest returns the most recent record of the given kind for the
	// subject, or ErrNotFound.
	Latest(ctx context.Context, subjectID int64, kind string) (Record, error)

	// Query returns a filtered, paginated page of the subject's records.
	// A page beyond the last yields an empty Records slice with the same
	// Total and PageCount, never an error.
	Query(ctx context.Context, subjectID int64, f Filter) (Page, error)

	// Delete removes a record owned by the subject. ErrNotFound covers
	// both a missing record and one owned by another subject.
	Delete(ctx context.Context, subjectID int64, recordID int64) error

	// ListSubjects returns all registered subjects.
	ListSubjects(ctx context.Context) ([]Subject, error)
}

// PageCount returns the number of pages needed for total items at perPage
// items per page. An empty result set has zero pages.
func PageCount(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
