package service

import (
	"strings"
	"time"
)

// EvaluationRecord is one scored assessment of a single CS reply. Absent store
// values stay nil; aggregate math treats a nil score as 0.
type EvaluationRecord struct {
	ID              string    `json:"id"`
	TicketID        *string   `json:"ticket_id"`
	AgentName       *string   `json:"agent_name"`
	ChannelAccount  *string   `json:"channel_account"`
	CustomerMessage *string   `json:"customer_message"`
	CSReply         *string   `json:"cs_reply"`
	SuggestedReply  *string   `json:"suggested_reply"`
	Accuracy        *float64  `json:"accuracy"`
	Tone            *float64  `json:"tone"`
	Clarity         *float64  `json:"clarity"`
	Completeness    *float64  `json:"completeness"`
	Relevance       *float64  `json:"relevance"`
	OverallScore    *float64  `json:"overall_score"`
	Feedback        *string   `json:"feedback"`
	Tags            *string   `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
	CustomerName    *string   `json:"customer_name"`
}

// TagList splits the comma-separated tags, dropping blank entries.
func (r EvaluationRecord) TagList() []string {
	if r.Tags == nil {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(*r.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// AgentStats is the per-agent rollup. Averages are unrounded.
type AgentStats struct {
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	AverageScore float64 `json:"averageScore"`
	Accuracy     float64 `json:"accuracy"`
	Tone         float64 `json:"tone"`
	Clarity      float64 `json:"clarity"`
	Completeness float64 `json:"completeness"`
	Relevance    float64 `json:"relevance"`
}

type ScoreBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

type TrendPoint struct {
	Date     string  `json:"date"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avgScore"`
}

// Stats is the dashboard-level summary of a record set.
type Stats struct {
	TotalEvaluations  int           `json:"totalEvaluations"`
	AverageScore      float64       `json:"averageScore"`
	TopAgent          string        `json:"topAgent"`
	TopAgentScore     float64       `json:"topAgentScore"`
	ActiveAgents      int           `json:"activeAgents"`
	AgentStats        []AgentStats  `json:"agentStats"`
	ScoreDistribution []ScoreBucket `json:"scoreDistribution"`
	RecentTrend       []TrendPoint  `json:"recentTrend"`
}

// TicketGroup collects the evaluations of one ticket, newest first.
type TicketGroup struct {
	TicketID         string             `json:"ticketId"`
	Evaluations      []EvaluationRecord `json:"evaluations"`
	LatestEvaluation EvaluationRecord   `json:"latestEval"`
	Count            int                `json:"count"`
	AvgScore         float64            `json:"avgScore"`
	Grade            ScoreGrade         `json:"grade"`
}

// TicketView is one page of the filtered, grouped ticket list.
type TicketView struct {
	Groups               []TicketGroup `json:"groups"`
	Page                 int           `json:"page"`
	PageSize             int           `json:"pageSize"`
	TotalPages           int           `json:"totalPages"`
	TotalGroups          int           `json:"totalGroups"`
	TotalFilteredRecords int           `json:"totalFilteredRecords"`
}

// FilterOptions lists the distinct agents and channels present in a record set.
type FilterOptions struct {
	Agents   []string `json:"agents"`
	Channels []string `json:"channels"`
}
