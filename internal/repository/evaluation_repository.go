package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/godilite/cs-eval-dashboard/internal/metrics"
	"github.com/godilite/cs-eval-dashboard/internal/repository/models"
)

const evaluationColumns = `
	id, ticket_id, agent_name, channel_account,
	customer_message, cs_reply, suggested_reply,
	accuracy, tone, clarity, completeness, relevance, overall_score,
	feedback, tags, created_at`

// EvaluationRepository reads evaluation rows and customer names. Both tables are
// append-only and owned by the upstream evaluator; nothing here writes.
type EvaluationRepository struct {
	db *sqlx.DB
}

func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// QueryEvaluations returns rows newest first, optionally restricted to one agent.
func (r *EvaluationRepository) QueryEvaluations(ctx context.Context, q models.EvaluationQuery) (_ []models.EvaluationRow, err error) {
	defer observe("query_evaluations", time.Now(), &err)

	query := `SELECT` + evaluationColumns + ` FROM cs_evaluation`
	var args []any

	if q.AgentName != "" {
		query += ` WHERE agent_name = ?`
		args = append(args, q.AgentName)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	}

	var rows []models.EvaluationRow
	if err = r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query QueryEvaluations: %w", err)
	}
	return rows, nil
}

// CountEvaluations counts rows matching the same agent predicate as QueryEvaluations.
func (r *EvaluationRepository) CountEvaluations(ctx context.Context, agentName string) (_ int64, err error) {
	defer observe("count_evaluations", time.Now(), &err)

	query := `SELECT COUNT(*) FROM cs_evaluation`
	var args []any
	if agentName != "" {
		query += ` WHERE agent_name = ?`
		args = append(args, agentName)
	}

	var count int64
	if err = r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("query CountEvaluations: %w", err)
	}
	return count, nil
}

// LookupCustomerNames maps room id to the sender name of the earliest customer
// message in that room. Rooms without a named customer message are absent.
func (r *EvaluationRepository) LookupCustomerNames(ctx context.Context, roomIDs []string) (_ map[string]string, err error) {
	names := make(map[string]string)
	if len(roomIDs) == 0 {
		return names, nil
	}
	defer observe("lookup_customer_names", time.Now(), &err)

	query, args, err := sqlx.In(`
		SELECT room_id, sender_name
		FROM cs_messages
		WHERE sender_type = 'customer' AND room_id IN (?)
		ORDER BY created_at ASC, id ASC`, roomIDs)
	if err != nil {
		return nil, fmt.Errorf("build LookupCustomerNames: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query LookupCustomerNames: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.CustomerMessageRow
		if err := rows.StructScan(&m); err != nil {
			return nil, fmt.Errorf("scan LookupCustomerNames row: %w", err)
		}
		if !m.RoomID.Valid || m.RoomID.String == "" || !m.SenderName.Valid || m.SenderName.String == "" {
			continue
		}
		if _, seen := names[m.RoomID.String]; !seen {
			names[m.RoomID.String] = m.SenderName.String
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate LookupCustomerNames: %w", err)
	}
	return names, nil
}

func observe(operation string, start time.Time, err *error) {
	metrics.RecordDBQuery(operation, time.Since(start), *err)
}
