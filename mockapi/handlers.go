package mockapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/preslavrachev/restoffice/core"
)

// listQuery is the decoded {sort, range, filter} envelope
type listQuery struct {
	sortField string
	sortDesc  bool
	hasRange  bool
	start     int
	end       int
	filter    map[string]any
}

func parseListQuery(r *http.Request) (listQuery, error) {
	var q listQuery
	values := r.URL.Query()

	if raw := values.Get("sort"); raw != "" {
		var pair []any
		if err := decodeJSON([]byte(raw), &pair); err != nil {
			return q, fmt.Errorf("invalid sort: %w", err)
		}
		if len(pair) > 0 {
			if field, ok := pair[0].(string); ok {
				q.sortField = field
			}
		}
		if len(pair) > 1 {
			if order, ok := pair[1].(string); ok {
				q.sortDesc = strings.EqualFold(order, string(core.SortDesc))
			}
		}
	}

	if raw := values.Get("range"); raw != "" {
		var rng []int
		if err := json.Unmarshal([]byte(raw), &rng); err != nil || len(rng) != 2 {
			return q, fmt.Errorf("invalid range %q", raw)
		}
		q.hasRange = true
		q.start, q.end = rng[0], rng[1]
	}

	q.filter = map[string]any{}
	if raw := values.Get("filter"); raw != "" {
		if err := decodeJSON([]byte(raw), &q.filter); err != nil {
			return q, fmt.Errorf("invalid filter: %w", err)
		}
	}

	return q, nil
}

// apply filters, sorts and slices records. It returns the page, the first index and the total match count.
func (q listQuery) apply(records []core.Record) ([]core.Record, int, int) {
	matched := make([]core.Record, 0, len(records))
	for _, rec := range records {
		if matchesFilter(rec, q.filter) {
			matched = append(matched, cloneRecord(rec))
		}
	}

	if q.sortField != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			cmp := compareValues(matched[i][q.sortField], matched[j][q.sortField])
			if q.sortDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	total := len(matched)
	if !q.hasRange {
		return matched, 0, total
	}

	start, end := q.start, q.end+1
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	if end < start {
		end = start
	}
	return matched[start:end], start, total
}

// matchesFilter checks equality per key. Array values match by membership;
// the "ids" key matches against the record id.
func matchesFilter(rec core.Record, filter map[string]any) bool {
	for key, want := range filter {
		field := key
		if key == "ids" {
			field = "id"
		}
		got := core.FormatID(rec[field])

		if list, ok := want.([]any); ok {
			if !containsID(list, got) {
				return false
			}
			continue
		}
		if got != core.FormatID(want) {
			return false
		}
	}
	return true
}

func containsID(list []any, id string) bool {
	for _, v := range list {
		if core.FormatID(v) == id {
			return true
		}
	}
	return false
}

// compareValues orders numbers numerically and everything else as strings
func compareValues(a, b any) int {
	as, bs := core.FormatID(a), core.FormatID(b)
	af, aErr := strconv.ParseFloat(as, 64)
	bf, bErr := strconv.ParseFloat(bs, 64)
	if aErr == nil && bErr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(as, bs)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, _, total := q.apply(s.Records(chi.URLParam(r, "resource")))
	writeJSON(w, http.StatusOK, map[string]any{
		"items": page,
		"count": total,
	})
}

func (s *Server) handleOne(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	id := r.URL.Query().Get("id")
	category := r.URL.Query().Get("category")

	rec, ok := s.find(resource, id, category)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %q not found", resource, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productItem": rec})
}

// handleQuery serves getMany and getManyReference: a bare array, with
// Content-Range when a range was requested
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, start, total := q.apply(s.Records(resource))
	if q.hasRange {
		w.Header().Set("Content-Range", fmt.Sprintf("%s %d-%d/%d", resource, start, start+len(page)-1, total))
		w.Header().Set("Access-Control-Expose-Headers", "Content-Range")
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	rec, err := decodeRecordBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rec == nil {
		rec = core.Record{}
	}

	s.mu.Lock()
	rec["id"] = s.nextID
	s.nextID++
	s.collections[resource] = append(s.collections[resource], cloneRecord(rec))
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	id := chi.URLParam(r, "id")
	rec, err := decodeRecordBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.collections[resource] {
		if core.FormatID(existing.ID()) == id {
			replaced := cloneRecord(rec)
			if replaced == nil {
				replaced = core.Record{}
			}
			replaced["id"] = existing.ID()
			s.collections[resource][i] = replaced
			writeJSON(w, http.StatusOK, replaced)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("%s %q not found", resource, id))
}

func (s *Server) handleUpdateMany(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch, err := decodeRecordBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	updated := []any{}
	for _, rec := range s.collections[resource] {
		if !matchesFilter(rec, q.filter) {
			continue
		}
		for k, v := range patch {
			if k != "id" {
				rec[k] = v
			}
		}
		updated = append(updated, rec.ID())
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteByQuery(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	id := r.URL.Query().Get("id")
	s.deleteOne(w, resource, id, r.URL.Query().Get("category"))
}

func (s *Server) handleDeleteByID(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	s.deleteOne(w, resource, chi.URLParam(r, "id"), r.URL.Query().Get("category"))
}

func (s *Server) deleteOne(w http.ResponseWriter, resource, id, category string) {
	removed, ok := s.remove(resource, func(rec core.Record) bool {
		return core.FormatID(rec.ID()) == id && inCategory(rec, category)
	})
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %q not found", resource, id))
		return
	}
	writeJSON(w, http.StatusOK, removed[0])
}

func (s *Server) handleDeleteManyByQuery(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	var ids []any
	if err := decodeJSON([]byte(r.URL.Query().Get("ids")), &ids); err != nil {
		writeError(w, http.StatusBadRequest, "invalid ids: "+err.Error())
		return
	}
	s.deleteMatching(w, resource, ids)
}

func (s *Server) handleDeleteByFilter(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids, _ := q.filter["id"].([]any)
	s.deleteMatching(w, resource, ids)
}

func (s *Server) deleteMatching(w http.ResponseWriter, resource string, ids []any) {
	removed, _ := s.remove(resource, func(rec core.Record) bool {
		return containsID(ids, core.FormatID(rec.ID()))
	})
	deleted := make([]any, len(removed))
	for i, rec := range removed {
		deleted[i] = rec.ID()
	}
	writeJSON(w, http.StatusOK, deleted)
}

// find looks a record up by id, scoped to category when one is given
func (s *Server) find(resource, id, category string) (core.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.collections[resource] {
		if core.FormatID(rec.ID()) == id && inCategory(rec, category) {
			return cloneRecord(rec), true
		}
	}
	return nil, false
}

// remove deletes every record matching pred and returns them
func (s *Server) remove(resource string, pred func(core.Record) bool) ([]core.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept, removed []core.Record
	for _, rec := range s.collections[resource] {
		if pred(rec) {
			removed = append(removed, rec)
		} else {
			kept = append(kept, rec)
		}
	}
	s.collections[resource] = kept
	return removed, len(removed) > 0
}

// inCategory treats an empty category, or a record without one, as unscoped
func inCategory(rec core.Record, category string) bool {
	if category == "" {
		return true
	}
	value, ok := rec["category"]
	if !ok {
		return true
	}
	return core.FormatID(value) == category
}

func decodeRecordBody(r *http.Request) (core.Record, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, nil
	}
	var rec core.Record
	if err := decodeJSON(buf.Bytes(), &rec); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	return rec, nil
}

func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error":  http.StatusText(status),
		"status": status,
		"detail": message,
	})
}
