package timing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AddBuildTime records how long a build took for a given element count so
// future builds can be estimated.
func AddBuildTime(
	ctx context.Context,
	conn *pgxpool.Pool,
	jobID string,
	amount int64,
	durationMs int64,
	statType string,
) error {
	_, err := conn.Exec(ctx, `
		INSERT INTO build_stats (job_id, amount, duration, stat_type)
		VALUES ($1, $2, $3, $4)`,
		jobID, amount, durationMs, statType,
	)
	return err
}

// PredictBuildTime estimates the duration in milliseconds for processing the
// given element count, extrapolated from the most recent recorded builds.
func PredictBuildTime(ctx context.Context, conn *pgxpool.Pool, amount int64, statType string) (int64, error) {
	var prediction int64
	err := conn.QueryRow(ctx, `
		SELECT COALESCE((SUM(duration)::float8 / NULLIF(SUM(amount), 0)) * $1, 0)::bigint
		FROM (
			SELECT amount, duration FROM build_stats
			WHERE stat_type = $2
			ORDER BY created_at DESC
			LIMIT 50
		) recent`,
		amount, statType,
	).Scan(&prediction)
	if err != nil {
		return 0, err
	}
	return prediction, nil
}
