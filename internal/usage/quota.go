package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/infra"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/sqlinline"
)

const eventVideoGenerate = "video_generate"

// Quota enforces the authoritative per-user daily generation limit in
// PostgreSQL.
type Quota struct {
	sql        infra.SQLExecutor
	dailyLimit int
}

func NewQuota(sql infra.SQLExecutor, dailyLimit int) *Quota {
	return &Quota{sql: sql, dailyLimit: dailyLimit}
}

// Remaining reports today's unspent allowance without charging anything. It
// returns domain.ErrQuotaExceeded once the budget is spent, and -1 when no
// limit is configured.
func (q *Quota) Remaining(ctx context.Context, userID string) (int, error) {
	if q.dailyLimit <= 0 {
		return -1, nil
	}
	row := q.sql.QueryRow(ctx, sqlinline.QCountUsageToday, userID, eventVideoGenerate)
	var used int
	if err := row.Scan(&used); err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	if used >= q.dailyLimit {
		return 0, fmt.Errorf("daily limit of %d reached: %w", q.dailyLimit, domain.ErrQuotaExceeded)
	}
	return q.dailyLimit - used, nil
}

// Record charges one video generation against today's budget. Callers
// invoke it only after the job was accepted upstream, so a rejected or
// failed submission never burns allowance.
func (q *Quota) Record(ctx context.Context, userID string) error {
	if _, err := q.sql.Exec(ctx, sqlinline.QInsertUsageEvent, uuid.NewString(), userID, eventVideoGenerate); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}
