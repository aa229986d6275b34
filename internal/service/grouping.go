package service

import (
	"errors"
	"sort"
	"strings"
)

const (
	// DefaultPageSize is the page size a fresh view starts with.
	DefaultPageSize = 10

	noTicketID = "N/A"
)

// PageSizes are the selectable page sizes of the ticket view.
var PageSizes = []int{5, 10, 20, 50}

var ErrInvalidPageSize = errors.New("invalid page size")

// ScoreGrade classifies an average score for badge display.
type ScoreGrade string

const (
	GradeUnscored     ScoreGrade = "unscored"
	GradePoor         ScoreGrade = "poor"
	GradeBelowAverage ScoreGrade = "below_average"
	GradeAverage      ScoreGrade = "average"
	GradeGood         ScoreGrade = "good"
	GradeExcellent    ScoreGrade = "excellent"
)

func GradeScore(score float64) ScoreGrade {
	switch {
	case score <= 0:
		return GradeUnscored
	case score <= 20:
		return GradePoor
	case score <= 40:
		return GradeBelowAverage
	case score <= 60:
		return GradeAverage
	case score <= 80:
		return GradeGood
	default:
		return GradeExcellent
	}
}

// Filters narrow the ticket view. Ticket and Tag match by substring, Agent and
// Channel by whole value; all comparisons ignore case and empty values are unset.
type Filters struct {
	Ticket  string `json:"ticket,omitempty"`
	Agent   string `json:"agent,omitempty"`
	Channel string `json:"channel,omitempty"`
	Tag     string `json:"tag,omitempty"`
}

func (f Filters) normalized() Filters {
	return Filters{
		Ticket:  strings.ToLower(strings.TrimSpace(f.Ticket)),
		Agent:   strings.TrimSpace(f.Agent),
		Channel: strings.TrimSpace(f.Channel),
		Tag:     strings.ToLower(strings.TrimSpace(f.Tag)),
	}
}

func (f Filters) IsZero() bool {
	return f.normalized() == Filters{}
}

// Matches reports whether r satisfies every set filter.
func (f Filters) Matches(r EvaluationRecord) bool {
	return f.normalized().matches(r)
}

func (f Filters) matches(r EvaluationRecord) bool {
	if f.Ticket != "" && !containsFold(r.TicketID, f.Ticket) {
		return false
	}
	if f.Agent != "" && !equalFold(r.AgentName, f.Agent) {
		return false
	}
	if f.Channel != "" && !equalFold(r.ChannelAccount, f.Channel) {
		return false
	}
	if f.Tag != "" && !containsFold(r.Tags, f.Tag) {
		return false
	}
	return true
}

func containsFold(field *string, lowerNeedle string) bool {
	return field != nil && strings.Contains(strings.ToLower(*field), lowerNeedle)
}

func equalFold(field *string, want string) bool {
	return field != nil && strings.EqualFold(*field, want)
}

// FilterRecords keeps the records matching f, preserving their order.
func FilterRecords(records []EvaluationRecord, f Filters) []EvaluationRecord {
	nf := f.normalized()
	out := make([]EvaluationRecord, 0, len(records))
	for i := range records {
		if nf.matches(records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

func ticketKey(r EvaluationRecord) string {
	if r.TicketID == nil || *r.TicketID == "" {
		return noTicketID
	}
	return *r.TicketID
}

// GroupByTicket groups records by ticket id (absent or empty ids share the
// "N/A" group). Each group is ordered newest first and groups are ordered by
// their newest record; equal timestamps keep input order.
func GroupByTicket(records []EvaluationRecord) []TicketGroup {
	index := make(map[string]int)
	groups := make([]TicketGroup, 0)

	for i := range records {
		key := ticketKey(records[i])
		idx, ok := index[key]
		if !ok {
			idx = len(groups)
			index[key] = idx
			groups = append(groups, TicketGroup{TicketID: key})
		}
		groups[idx].Evaluations = append(groups[idx].Evaluations, records[i])
	}

	for i := range groups {
		g := &groups[i]
		sort.SliceStable(g.Evaluations, func(a, b int) bool {
			return g.Evaluations[a].CreatedAt.After(g.Evaluations[b].CreatedAt)
		})

		var total float64
		for j := range g.Evaluations {
			total += scoreOf(g.Evaluations[j].OverallScore)
		}
		g.LatestEvaluation = g.Evaluations[0]
		g.Count = len(g.Evaluations)
		g.AvgScore = total / float64(g.Count)
		g.Grade = GradeScore(g.AvgScore)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].LatestEvaluation.CreatedAt.After(groups[b].LatestEvaluation.CreatedAt)
	})
	return groups
}

// FindTicketGroup returns the unfiltered group for ticketID.
func FindTicketGroup(records []EvaluationRecord, ticketID string) (TicketGroup, bool) {
	var subset []EvaluationRecord
	for i := range records {
		if ticketKey(records[i]) == ticketID {
			subset = append(subset, records[i])
		}
	}
	if len(subset) == 0 {
		return TicketGroup{}, false
	}
	return GroupByTicket(subset)[0], true
}

// CollectFilterOptions lists distinct non-empty agents and channels, sorted.
func CollectFilterOptions(records []EvaluationRecord) FilterOptions {
	agents := make(map[string]struct{})
	channels := make(map[string]struct{})
	for i := range records {
		if a := records[i].AgentName; a != nil && *a != "" {
			agents[*a] = struct{}{}
		}
		if c := records[i].ChannelAccount; c != nil && *c != "" {
			channels[*c] = struct{}{}
		}
	}
	return FilterOptions{
		Agents:   sortedKeys(agents),
		Channels: sortedKeys(channels),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func IsValidPageSize(n int) bool {
	for _, size := range PageSizes {
		if size == n {
			return true
		}
	}
	return false
}

// ViewState is the user's position in the ticket view. It is a value: every
// change returns a new state.
type ViewState struct {
	Filters  Filters
	Page     int
	PageSize int
}

func NewViewState() ViewState {
	return ViewState{Page: 1, PageSize: DefaultPageSize}
}

// WithFilters replaces the filters and returns to the first page.
func (v ViewState) WithFilters(f Filters) ViewState {
	v.Filters = f
	v.Page = 1
	return v
}

func (v ViewState) ClearFilters() ViewState {
	return v.WithFilters(Filters{})
}

func (v ViewState) WithPage(page int) ViewState {
	v.Page = page
	return v
}

// WithPageSize changes the page size and returns to the first page.
func (v ViewState) WithPageSize(size int) (ViewState, error) {
	if !IsValidPageSize(size) {
		return v, ErrInvalidPageSize
	}
	v.PageSize = size
	v.Page = 1
	return v, nil
}

// Paginate slices one page out of groups. A page outside 1..totalPages falls
// back to the first page.
func Paginate(groups []TicketGroup, page, pageSize int) (pageGroups []TicketGroup, currentPage, totalPages int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	totalPages = (len(groups) + pageSize - 1) / pageSize
	if page < 1 || page > totalPages {
		page = 1
	}
	if totalPages == 0 {
		return []TicketGroup{}, page, 0
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(groups))
	return groups[start:end], page, totalPages
}

// BuildTicketView filters, groups and paginates records for state.
func BuildTicketView(records []EvaluationRecord, state ViewState) TicketView {
	pageSize := state.PageSize
	if !IsValidPageSize(pageSize) {
		pageSize = DefaultPageSize
	}

	filtered := FilterRecords(records, state.Filters)
	groups := GroupByTicket(filtered)
	pageGroups, page, totalPages := Paginate(groups, state.Page, pageSize)

	return TicketView{
		Groups:               pageGroups,
		Page:                 page,
		PageSize:             pageSize,
		TotalPages:           totalPages,
		TotalGroups:          len(groups),
		TotalFilteredRecords: len(filtered),
	}
}
