package models

import (
	"database/sql"
	"time"
)

// EvaluationRow mirrors one row of the cs_evaluation table.
type EvaluationRow struct {
	ID              string          `db:"id"`
	TicketID        sql.NullString  `db:"ticket_id"`
	AgentName       sql.NullString  `db:"agent_name"`
	ChannelAccount  sql.NullString  `db:"channel_account"`
	CustomerMessage sql.NullString  `db:"customer_message"`
	CSReply         sql.NullString  `db:"cs_reply"`
	SuggestedReply  sql.NullString  `db:"suggested_reply"`
	Accuracy        sql.NullFloat64 `db:"accuracy"`
	Tone            sql.NullFloat64 `db:"tone"`
	Clarity         sql.NullFloat64 `db:"clarity"`
	Completeness    sql.NullFloat64 `db:"completeness"`
	Relevance       sql.NullFloat64 `db:"relevance"`
	OverallScore    sql.NullFloat64 `db:"overall_score"`
	Feedback        sql.NullString  `db:"feedback"`
	Tags            sql.NullString  `db:"tags"`
	CreatedAt       time.Time       `db:"created_at"`
}

// CustomerMessageRow is the projection of cs_messages used for the name join.
type CustomerMessageRow struct {
	RoomID     sql.NullString `db:"room_id"`
	SenderName sql.NullString `db:"sender_name"`
}

// EvaluationQuery narrows and bounds a cs_evaluation read.
type EvaluationQuery struct {
	AgentName string
	Limit     int
	Offset    int
}
