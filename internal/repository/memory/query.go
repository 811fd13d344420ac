package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lupa-be/internal/repository/specification"

	"github.com/google/uuid"
)

// fields exposes a row's columns under their database names.
type fields map[string]interface{}

// apply evaluates the specifications the gorm repositories understand
// against in-memory rows.
func apply[T any](rows []T, columns func(T) fields, specs []specification.Specification) ([]T, error) {
	out := make([]T, 0, len(rows))
	out = append(out, rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return compare(columns(out[i])["created_at"], columns(out[j])["created_at"]) < 0
	})

	var orders []specification.OrderBy
	var page *specification.Pagination
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			out = filter(out, columns, func(f fields) bool { return same(f["id"], s.ID) })
		case specification.ByIDs:
			out = filter(out, columns, func(f fields) bool {
				for _, id := range s.IDs {
					if same(f["id"], id) {
						return true
					}
				}
				return false
			})
		case specification.FilterBy:
			out = filter(out, columns, func(f fields) bool { return same(f[s.Field], s.Value) })
		case specification.FilterIn:
			out = filter(out, columns, func(f fields) bool {
				for _, v := range s.Values {
					if same(f[s.Field], v) {
						return true
					}
				}
				return false
			})
		case specification.CreatedAtOrBefore:
			out = filter(out, columns, func(f fields) bool {
				t, ok := f["created_at"].(time.Time)
				return ok && !t.After(s.Time)
			})
		case specification.OrderBy:
			orders = append(orders, s)
		case specification.Pagination:
			p := s
			page = &p
		case specification.ForUpdate:
			// rows are locked by the transaction mutex
		default:
			return nil, fmt.Errorf("memory repository: unsupported specification %T", spec)
		}
	}

	if len(orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := columns(out[i]), columns(out[j])
			for _, o := range orders {
				c := compare(a[o.Field], b[o.Field])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if page != nil {
		start := page.Offset
		if start > len(out) {
			start = len(out)
		}
		end := len(out)
		if page.Limit > 0 && start+page.Limit < end {
			end = start + page.Limit
		}
		out = out[start:end]
	}
	return out, nil
}

func filter[T any](rows []T, columns func(T) fields, keep func(fields) bool) []T {
	out := rows[:0]
	for _, r := range rows {
		if keep(columns(r)) {
			out = append(out, r)
		}
	}
	return out
}

func same(a, b interface{}) bool {
	return normalize(a) == normalize(b)
}

func normalize(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "\x00nil"
	case uuid.UUID:
		return x.String()
	case *uuid.UUID:
		if x == nil {
			return "\x00nil"
		}
		return x.String()
	case *string:
		if x == nil {
			return "\x00nil"
		}
		return *x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func compare(a, b interface{}) int {
	switch x := a.(type) {
	case time.Time:
		y, _ := b.(time.Time)
		return x.Compare(y)
	case int:
		y, _ := b.(int)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return strings.Compare(normalize(a), normalize(b))
}
