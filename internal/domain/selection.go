package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SelectionDelimiter separates page numbers in a raw selection.
const SelectionDelimiter = ","

// PageSelection is an ascending set of distinct page numbers, each >= 1.
// The zero value is an empty selection.
type PageSelection struct {
	pages []int
}

// ParseSelection turns a raw expression like "3, 1,1,2" into the selection [1 2 3].
func ParseSelection(raw string) (PageSelection, error) {
	if strings.TrimSpace(raw) == "" {
		return PageSelection{}, fmt.Errorf("%w: empty input", ErrInvalidSelection)
	}

	tokens := strings.Split(raw, SelectionDelimiter)
	seen := make(map[int]struct{}, len(tokens))
	pages := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		n, err := strconv.Atoi(tok)
		if err != nil {
			return PageSelection{}, fmt.Errorf("%w: %q is not a page number", ErrInvalidSelection, tok)
		}
		if n <= 0 {
			return PageSelection{}, fmt.Errorf("%w: page numbers start at 1, got %d", ErrInvalidSelection, n)
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return PageSelection{pages: pages}, nil
}

// NewSelection builds a selection from already-known page numbers.
func NewSelection(pages ...int) (PageSelection, error) {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return ParseSelection(strings.Join(parts, SelectionDelimiter))
}

// Pages returns a copy of the page numbers in ascending order.
func (s PageSelection) Pages() []int {
	out := make([]int, len(s.pages))
	copy(out, s.pages)
	return out
}

// Len is the number of distinct pages selected.
func (s PageSelection) Len() int { return len(s.pages) }

// Empty reports whether nothing is selected.
func (s PageSelection) Empty() bool { return len(s.pages) == 0 }

func (s PageSelection) String() string {
	parts := make([]string, len(s.pages))
	for i, p := range s.pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, SelectionDelimiter)
}
