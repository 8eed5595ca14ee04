package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/sms-campaign/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sms_sends (
	id            BIGSERIAL PRIMARY KEY,
	run_id        TEXT        NOT NULL,
	campaign_row  INTEGER     NOT NULL,
	campaign_kind TEXT        NOT NULL,
	phone         TEXT        NOT NULL,
	body          TEXT        NOT NULL,
	status        TEXT        NOT NULL,
	message_id    TEXT,
	last_error    TEXT,
	segments      INTEGER     NOT NULL DEFAULT 0,
	cost          NUMERIC(10,4) NOT NULL DEFAULT 0,
	sent_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sms_sends_sent_at_idx ON sms_sends (sent_at DESC);
`

type PostgresSendLog struct {
	db *sql.DB
}

func NewPostgresSendLog(db *sql.DB) *PostgresSendLog {
	return &PostgresSendLog{db: db}
}

func (r *PostgresSendLog) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *PostgresSendLog) Insert(ctx context.Context, rec *model.SendRecord) error {
	if rec == nil {
		return errors.New("send record is nil")
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO sms_sends
			(run_id, campaign_row, campaign_kind, phone, body, status,
			 message_id, last_error, segments, cost, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		rec.RunID,
		rec.CampaignRow,
		string(rec.CampaignKind),
		rec.Phone,
		rec.Body,
		string(rec.Status),
		rec.MessageID,
		rec.LastError,
		rec.Segments,
		rec.Cost,
		rec.SentAt.UTC(),
	).Scan(&rec.ID)
}

func (r *PostgresSendLog) ListSent(ctx context.Context, limit, offset int) ([]model.SendRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, campaign_row, campaign_kind, phone, body, status,
		       message_id, last_error, segments, cost, sent_at
		FROM sms_sends
		ORDER BY sent_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SendRecord
	for rows.Next() {
		var (
			rec       model.SendRecord
			kind      string
			status    string
			messageID sql.NullString
			lastError sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.CampaignRow,
			&kind,
			&rec.Phone,
			&rec.Body,
			&status,
			&messageID,
			&lastError,
			&rec.Segments,
			&rec.Cost,
			&rec.SentAt,
		); err != nil {
			return nil, err
		}
		rec.CampaignKind = model.Kind(kind)
		rec.Status = model.Status(status)
		if messageID.Valid {
			v := messageID.String
			rec.MessageID = &v
		}
		if lastError.Valid {
			v := lastError.String
			rec.LastError = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresSendLog) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM sms_sends
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}
