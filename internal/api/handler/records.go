package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/guanacaste-labs/climatrack/internal/api/respond"
	"github.com/guanacaste-labs/climatrack/internal/auth"
	"github.com/guanacaste-labs/climatrack/internal/bus"
	"github.com/guanacaste-labs/climatrack/internal/record"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// recordsQuery holds the validated list parameters.
type recordsQuery struct {
	Page    int `validate:"gte=1"`
	PerPage int `validate:"gte=1,lte=100"`
	Kind    string
	Start   *time.Time
	End     *time.Time
}

// parseRecordsQuery binds and validates the list query parameters. Dates use
// the YYYY-MM-DD calendar format; the end date is inclusive through the end
// of its day.
func parseRecordsQuery(r *http.Request) (recordsQuery, error) {
	q := recordsQuery{Page: 1, PerPage: 10}

	var err error
	if v := r.URL.Query().Get("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			return q, errors.New("page must be an integer")
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if q.PerPage, err = strconv.Atoi(v); err != nil {
			return q, errors.New("per_page must be an integer")
		}
	}
	q.Kind = r.URL.Query().Get("record_type")

	if v := r.URL.Query().Get("start_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, errors.New("start_date format must be YYYY-MM-DD")
		}
		q.Start = &t
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return q, errors.New("end_date format must be YYYY-MM-DD")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		q.End = &end
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// ListRecords serves GET /api/v1/records: the authenticated subject's
// records, filtered and paginated, most recent first. A successful read
// publishes an informational event carrying aggregate counts only.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := auth.SubjectID(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "TOKEN_MISSING", "Token is missing")
		return
	}

	q, err := parseRecordsQuery(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	page, err := h.store.Query(r.Context(), subjectID, record.Filter{
		Kind:    q.Kind,
		Start:   q.Start,
		End:     q.End,
		Page:    q.Page,
		PerPage: q.PerPage,
	})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to query records")
		return
	}

	h.events.Publish(bus.Event{
		Kind:   "query",
		Action: bus.ActionRead,
		Payload: map[string]any{
			"user_id": subjectID,
			"total":   page.Total,
			"page":    page.Page,
		},
	})

	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"user_id":  subjectID,
		"records":  page.Records,
		"total":    page.Total,
		"pages":    page.PageCount,
		"page":     page.Page,
		"per_page": page.PerPage,
	})
}

// createRecordBody is the POST /records request body.
type createRecordBody struct {
	Kind    string          `json:"record_type"`
	Payload json.RawMessage `json:"data"`
}

// CreateRecord serves POST /api/v1/records: appends a record for the
// authenticated subject and publishes a create event.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := auth.SubjectID(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "TOKEN_MISSING", "Token is missing")
		return
	}

	var body createRecordBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be JSON")
		return
	}
	if body.Kind == "" || len(body.Payload) == 0 {
		respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "record_type and data are required")
		return
	}

	rec, err := h.store.Append(r.Context(), subjectID, body.Kind, body.Payload)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Error adding record")
		return
	}

	h.events.Publish(bus.Event{
		Kind:   rec.Kind,
		Action: bus.ActionCreate,
		Payload: map[string]any{
			"record_id": rec.ID,
			"user_id":   rec.SubjectID,
			"timestamp": rec.Timestamp,
		},
	})

	respond.WriteJSONObject(w, http.StatusCreated, map[string]any{
		"message": "Record added successfully.",
		"record":  rec,
	})
}

// DeleteRecord serves DELETE /api/v1/records/{recordID}. A record that does
// not exist and a record owned by another subject produce the same 404, so
// the endpoint never leaks foreign record ids.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := auth.SubjectID(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "TOKEN_MISSING", "Token is missing")
		return
	}

	recordID, err := strconv.ParseInt(chi.URLParam(r, "recordID"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "record id must be an integer")
		return
	}

	err = h.store.Delete(r.Context(), subjectID, recordID)
	if errors.Is(err, record.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Record not found.")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Error deleting record")
		return
	}

	h.events.Publish(bus.Event{
		Kind:   "record",
		Action: bus.ActionDelete,
		Payload: map[string]any{
			"record_id": recordID,
			"user_id":   subjectID,
		},
	})

	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"message": "Record deleted successfully.",
	})
}
