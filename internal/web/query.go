package web

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

type PageQuery struct {
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SortOrder string `json:"sort_order"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func ParsePageQuery(r *http.Request) PageQuery {
	q := PageQuery{
		Page:      1,
		PageSize:  20,
		SortOrder: "desc",
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			q.Page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 100 {
			q.PageSize = p
		}
	}
	if v := r.URL.Query().Get("sort_order"); v == "asc" || v == "desc" {
		q.SortOrder = v
	}
	q.StartTime = r.URL.Query().Get("start_time")
	q.EndTime = r.URL.Query().Get("end_time")
	return q
}

func (q *PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// QueryInt64 reads an optional integer query parameter. Absent or empty
// values return 0 and ok=true; malformed values return ok=false.
func QueryInt64(r *http.Request, key string) (int64, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PathInt64 reads a positive integer path segment.
func PathInt64(r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(r.PathValue(name)), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// FlexID is an id sent either as a JSON number or as a numeric string.
// Malformed values decode to zero rather than failing the whole body.
type FlexID int64

func (id *FlexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = 0
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*id = FlexID(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		*id = FlexID(int64(f))
		return nil
	}
	*id = 0
	return nil
}

func (id FlexID) Int64() int64 { return int64(id) }
