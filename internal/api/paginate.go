package api

import (
	"net/http"
	"strconv"

	"github.com/AIAleph/mvp_market_context/internal/config"
)

// Page is one slice of a feed.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// Paginate returns the cursor-th page of size items. Cursors past the end
// yield an empty page.
func Paginate[T any](feed []T, cursor, size int) Page[T] {
	if cursor < 0 {
		cursor = 0
	}
	if size <= 0 {
		return Page[T]{Items: []T{}, HasMore: len(feed) > 0}
	}
	start := cursor * size
	if start >= len(feed) {
		return Page[T]{Items: []T{}}
	}
	end := min(start+size, len(feed))
	return Page[T]{Items: feed[start:end], HasMore: end < len(feed)}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// pageParams reads cursor and size, accepting counter as an alias of cursor.
func (s *Server) pageParams(r *http.Request) (cursor, size int) {
	cursor = queryInt(r, "cursor", queryInt(r, "counter", 0))
	size = queryInt(r, "size", s.pageSize)
	if size < 1 {
		size = s.pageSize
	}
	return max(cursor, 0), min(size, config.MaxPageSize())
}
