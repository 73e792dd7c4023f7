package book

import (
	"strings"
	"time"
)

// DefaultLimit caps a search when the caller does not ask for a size.
const DefaultLimit = 10

// Book is a catalogue record as stored in the search engine.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title" validate:"notblank"`
	Author      string    `json:"author" validate:"notblank"`
	Description string    `json:"description"`
	Genre       string    `json:"genre"`
	PublishDate time.Time `json:"publishDate"`
	Publisher   string    `json:"publisher"`
}

// Criteria is an immutable set of optional search filters plus a result cap.
// Build it with NewCriteria so term and genre are folded exactly once.
type Criteria struct {
	term  string
	genre string
	start *time.Time
	end   *time.Time
	limit int
}

// NewCriteria normalizes the raw filters: term and genre are trimmed and
// lowercased, dates are copied and converted to UTC, and a non-positive
// limit falls back to DefaultLimit.
func NewCriteria(term, genre string, start, end *time.Time, limit int) Criteria {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Criteria{
		term:  strings.ToLower(strings.TrimSpace(term)),
		genre: strings.ToLower(strings.TrimSpace(genre)),
		start: utcCopy(start),
		end:   utcCopy(end),
		limit: limit,
	}
}

func (c Criteria) Term() string  { return c.term }
func (c Criteria) Genre() string { return c.genre }
func (c Criteria) Limit() int    { return c.limit }

// StartDate returns a copy of the lower publish-date bound, or nil.
func (c Criteria) StartDate() *time.Time { return utcCopy(c.start) }

// EndDate returns a copy of the upper publish-date bound, or nil.
func (c Criteria) EndDate() *time.Time { return utcCopy(c.end) }

func utcCopy(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
