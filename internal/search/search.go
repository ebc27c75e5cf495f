// Package search derives the visible page of the reward list from the
// catalog's collection. It owns no state: every call recomputes the view
// from the collection, the search term and the requested page.
package search

import (
	"strings"

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
)

// PageSize is the number of rewards shown per page.
const PageSize = 10

// Query selects a page of the filtered collection. Page is 1-indexed.
type Query struct {
	Term string
	Page int
}

// Result is one computed page.
type Result struct {
	Items     []reward.Reward
	Page      int // the page actually shown, after clamping
	PageCount int // number of page buttons
	Matched   int // rewards matching the term
	Total     int // rewards in the collection
}

// Filter keeps rewards whose name or description contains term,
// case-insensitively. An empty term keeps everything. Order is preserved.
func Filter(rewards []reward.Reward, term string) []reward.Reward {
	if term == "" {
		return rewards
	}
	needle := strings.ToLower(term)
	var out []reward.Reward
	for _, r := range rewards {
		if strings.Contains(strings.ToLower(r.Name), needle) ||
			strings.Contains(strings.ToLower(r.Description), needle) {
			out = append(out, r)
		}
	}
	return out
}

// PageCount returns ceil(n / PageSize).
func PageCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + PageSize - 1) / PageSize
}

// ClampPage pins page into [1, max(1, pageCount)].
func ClampPage(page, pageCount int) int {
	if page > pageCount {
		page = pageCount
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Run filters rewards by q.Term and returns the requested page. A page
// beyond the last one is pulled back to the last page, so shrinking the
// filtered set never leaves the view on an empty page.
func Run(rewards []reward.Reward, q Query) Result {
	filtered := Filter(rewards, q.Term)
	pages := PageCount(len(filtered))
	page := ClampPage(q.Page, pages)

	start := (page - 1) * PageSize
	end := min(start+PageSize, len(filtered))

	items := []reward.Reward{}
	if start < end {
		items = append(items, filtered[start:end]...)
	}
	return Result{
		Items:     items,
		Page:      page,
		PageCount: pages,
		Matched:   len(filtered),
		Total:     len(rewards),
	}
}
