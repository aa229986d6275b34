package service

import (
	"time"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

var testNow = time.Date(2025, 10, 18, 15, 0, 0, 0, time.UTC)

type recordOpt func(*EvaluationRecord)

func withTicket(id string) recordOpt {
	return func(r *EvaluationRecord) { r.TicketID = strPtr(id) }
}

func withAgent(name string) recordOpt {
	return func(r *EvaluationRecord) { r.AgentName = strPtr(name) }
}

func withChannel(ch string) recordOpt {
	return func(r *EvaluationRecord) { r.ChannelAccount = strPtr(ch) }
}

func withTags(tags string) recordOpt {
	return func(r *EvaluationRecord) { r.Tags = strPtr(tags) }
}

func withScore(score float64) recordOpt {
	return func(r *EvaluationRecord) { r.OverallScore = floatPtr(score) }
}

func newRecord(id string, createdAt time.Time, opts ...recordOpt) EvaluationRecord {
	r := EvaluationRecord{ID: id, CreatedAt: createdAt}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}
