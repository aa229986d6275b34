package service

import (
	"math"
	"sort"
	"time"
)

const (
	unknownAgent = "Unknown"
	noTopAgent   = "N/A"
	trendDays    = 7
	dateLayout   = "2006-01-02"
)

// scoreRanges are closed on the upper bound: 20 lands in "0-20", 20.5 in "21-40".
var scoreRanges = []struct {
	label string
	upper float64
}{
	{"0-20", 20},
	{"21-40", 40},
	{"41-60", 60},
	{"61-80", 80},
	{"81-100", math.Inf(1)},
}

func scoreOf(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func roundToTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

type agentAccumulator struct {
	name         string
	count        int
	total        float64
	accuracy     float64
	tone         float64
	clarity      float64
	completeness float64
	relevance    float64
}

// Aggregate computes dashboard statistics over records. The trend window is the
// seven UTC calendar days ending on the day of now.
func Aggregate(records []EvaluationRecord, now time.Time) Stats {
	stats := Stats{
		TopAgent:          noTopAgent,
		AgentStats:        []AgentStats{},
		ScoreDistribution: scoreDistribution(records),
		RecentTrend:       recentTrend(records, now),
	}
	if len(records) == 0 {
		return stats
	}

	var total float64
	for i := range records {
		total += scoreOf(records[i].OverallScore)
	}
	stats.TotalEvaluations = len(records)
	stats.AverageScore = roundToTenth(total / float64(len(records)))

	stats.AgentStats = agentRollups(records)
	stats.ActiveAgents = len(stats.AgentStats)
	if len(stats.AgentStats) > 0 {
		stats.TopAgent = stats.AgentStats[0].Name
		stats.TopAgentScore = roundToTenth(stats.AgentStats[0].AverageScore)
	}
	return stats
}

// agentRollups groups by agent name ("Unknown" when absent) and orders by average
// score descending, keeping first-seen order between equal averages.
func agentRollups(records []EvaluationRecord) []AgentStats {
	byName := make(map[string]*agentAccumulator)
	order := make([]*agentAccumulator, 0)

	for i := range records {
		r := &records[i]
		name := unknownAgent
		if r.AgentName != nil && *r.AgentName != "" {
			name = *r.AgentName
		}

		acc, ok := byName[name]
		if !ok {
			acc = &agentAccumulator{name: name}
			byName[name] = acc
			order = append(order, acc)
		}
		acc.count++
		acc.total += scoreOf(r.OverallScore)
		acc.accuracy += scoreOf(r.Accuracy)
		acc.tone += scoreOf(r.Tone)
		acc.clarity += scoreOf(r.Clarity)
		acc.completeness += scoreOf(r.Completeness)
		acc.relevance += scoreOf(r.Relevance)
	}

	out := make([]AgentStats, len(order))
	for i, acc := range order {
		n := float64(acc.count)
		out[i] = AgentStats{
			Name:         acc.name,
			Count:        acc.count,
			AverageScore: acc.total / n,
			Accuracy:     acc.accuracy / n,
			Tone:         acc.tone / n,
			Clarity:      acc.clarity / n,
			Completeness: acc.completeness / n,
			Relevance:    acc.relevance / n,
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AverageScore > out[j].AverageScore
	})
	return out
}

func scoreDistribution(records []EvaluationRecord) []ScoreBucket {
	buckets := make([]ScoreBucket, len(scoreRanges))
	for i, r := range scoreRanges {
		buckets[i].Range = r.label
	}

	for i := range records {
		buckets[bucketIndex(scoreOf(records[i].OverallScore))].Count++
	}
	return buckets
}

func bucketIndex(score float64) int {
	for i, r := range scoreRanges {
		if score <= r.upper {
			return i
		}
	}
	return len(scoreRanges) - 1
}

func recentTrend(records []EvaluationRecord, now time.Time) []TrendPoint {
	today := now.UTC().Truncate(24 * time.Hour)

	points := make([]TrendPoint, trendDays)
	totals := make([]float64, trendDays)
	index := make(map[string]int, trendDays)
	for i := range points {
		day := today.AddDate(0, 0, i-(trendDays-1)).Format(dateLayout)
		points[i].Date = day
		index[day] = i
	}

	for i := range records {
		day := records[i].CreatedAt.UTC().Format(dateLayout)
		if idx, ok := index[day]; ok {
			points[idx].Count++
			totals[idx] += scoreOf(records[i].OverallScore)
		}
	}

	for i := range points {
		if points[i].Count > 0 {
			points[i].AvgScore = totals[i] / float64(points[i].Count)
		}
	}
	return points
}
