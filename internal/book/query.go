package book

import "time"

// Engine field names searched by the query builder.
const (
	FieldTitle       = "title"
	FieldGenre       = "genre"
	FieldPublishDate = "publishDate"
)

// ClauseKind tells the engine how a clause participates in the query.
type ClauseKind int

const (
	// MustMatch is an analyzed, relevance-scored match.
	MustMatch ClauseKind = iota
	// FilterTerm is a non-scoring exact match.
	FilterTerm
	// FilterRange is a non-scoring inclusive date range.
	FilterRange
)

func (k ClauseKind) String() string {
	switch k {
	case MustMatch:
		return "must_match"
	case FilterTerm:
		return "filter_term"
	case FilterRange:
		return "filter_range"
	default:
		return "unknown"
	}
}

// DateRange bounds a date field. Nil ends are open; set ends are inclusive.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Clause is one condition of a Plan. Value is used by MustMatch and
// FilterTerm, Range by FilterRange.
type Clause struct {
	Kind  ClauseKind
	Field string
	Value string
	Range DateRange
}

// Plan is the structured query handed to the engine. No clauses means
// match everything, bounded by Size.
type Plan struct {
	Clauses []Clause
	Size    int
}

// MatchAll reports whether the plan applies no conditions.
func (p Plan) MatchAll() bool {
	return len(p.Clauses) == 0
}

// clauseStep adds at most one clause for a single filter of the criteria.
type clauseStep func(c Criteria) (Clause, bool)

// planSteps run in order; each filter is independent of the others so every
// combination of present and absent filters is covered.
var planSteps = []clauseStep{
	titleStep,
	genreStep,
	publishDateStep,
}

// BuildQuery maps search criteria to exactly one plan.
func BuildQuery(c Criteria) Plan {
	plan := Plan{Size: c.limit}
	for _, step := range planSteps {
		if clause, ok := step(c); ok {
			plan.Clauses = append(plan.Clauses, clause)
		}
	}
	return plan
}

func titleStep(c Criteria) (Clause, bool) {
	if c.term == "" {
		return Clause{}, false
	}
	return Clause{Kind: MustMatch, Field: FieldTitle, Value: c.term}, true
}

func genreStep(c Criteria) (Clause, bool) {
	if c.genre == "" {
		return Clause{}, false
	}
	return Clause{Kind: FilterTerm, Field: FieldGenre, Value: c.genre}, true
}

func publishDateStep(c Criteria) (Clause, bool) {
	r, ok := publishDateRange(c.start, c.end)
	if !ok {
		return Clause{}, false
	}
	return Clause{Kind: FilterRange, Field: FieldPublishDate, Range: r}, true
}

// publishDateRange builds an inclusive range from optional bounds. A reversed
// range is kept as is; the engine simply matches nothing.
func publishDateRange(start, end *time.Time) (DateRange, bool) {
	if start == nil && end == nil {
		return DateRange{}, false
	}
	return DateRange{From: utcCopy(start), To: utcCopy(end)}, true
}

// Source renders the plan as Elasticsearch query DSL.
func (p Plan) Source() map[string]any {
	if p.MatchAll() {
		return map[string]any{
			"size":  p.Size,
			"query": map[string]any{"match_all": map[string]any{}},
		}
	}

	var must, filter []any
	for _, c := range p.Clauses {
		switch c.Kind {
		case MustMatch:
			must = append(must, map[string]any{
				"match": map[string]any{c.Field: map[string]any{"query": c.Value}},
			})
		case FilterTerm:
			filter = append(filter, map[string]any{
				"term": map[string]any{c.Field: c.Value},
			})
		case FilterRange:
			filter = append(filter, map[string]any{
				"range": map[string]any{c.Field: c.Range.source()},
			})
		}
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]any{
		"size":  p.Size,
		"query": map[string]any{"bool": boolQuery},
	}
}

func (r DateRange) source() map[string]any {
	bounds := map[string]any{}
	if r.From != nil {
		bounds["gte"] = r.From.UTC().Format(time.RFC3339Nano)
	}
	if r.To != nil {
		bounds["lte"] = r.To.UTC().Format(time.RFC3339Nano)
	}
	return bounds
}
