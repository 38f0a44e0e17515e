package jobs

import (
	"context"
	"errors"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OpenTwinHQ/opentwin/backend/internal/util"
)

var ErrJobNotFound = errors.New("job not found")

// Job states. A job starts pending, moves to building when a worker picks it
// up, and ends ready or failed.
const (
	StatePending  = "pending"
	StateBuilding = "building"
	StateReady    = "ready"
	StateFailed   = "failed"
)

type Job struct {
	ID         string    `json:"job_id"`
	Name       string    `json:"name"`
	ModelKey   string    `json:"model_key"`
	ExtractKey string    `json:"extract_key"`
	State      string    `json:"state"`
	Warnings   []string  `json:"warnings,omitempty"`
	Error      string    `json:"error,omitempty"`
	OwnerID    int32     `json:"owner_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const jobColumns = `id, name, model_key, extract_key, state, warnings, error, owner_id, created_at, updated_at`

func scanJob(row pgxv5.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Name, &j.ModelKey, &j.ExtractKey, &j.State, &j.Warnings, &j.Error, &j.OwnerID, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return j, err
}

// NewJobID generates a job identifier. Generated up front so uploads can be
// keyed by job id before the row exists.
func NewJobID() (string, error) {
	return gonanoid.New()
}

// CreateJob inserts a new pending job.
func CreateJob(ctx context.Context, conn *pgxpool.Pool, id, name, modelKey string, ownerID int32) (Job, error) {
	row := conn.QueryRow(ctx, `
		INSERT INTO jobs (id, name, model_key, state, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns,
		id, util.SanitizePostgresText(name), modelKey, StatePending, ownerID,
	)
	return scanJob(row)
}

// GetJob fetches one job by id.
func GetJob(ctx context.Context, conn *pgxpool.Pool, jobID string) (Job, error) {
	row := conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

// ListJobs returns every job, newest first.
func ListJobs(ctx context.Context, conn *pgxpool.Pool) ([]Job, error) {
	return listJobs(ctx, conn, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
}

// ListJobsForUser returns the jobs owned by one user, newest first.
func ListJobsForUser(ctx context.Context, conn *pgxpool.Pool, ownerID int32) ([]Job, error) {
	return listJobs(ctx, conn, `SELECT `+jobColumns+` FROM jobs WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func listJobs(ctx context.Context, conn *pgxpool.Pool, query string, args ...any) ([]Job, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateJobState moves the job to a new state.
func UpdateJobState(ctx context.Context, conn *pgxpool.Pool, jobID, state string) error {
	tag, err := conn.Exec(ctx,
		`UPDATE jobs SET state = $2, updated_at = now() WHERE id = $1`, jobID, state)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkJobFailed stores the failure reason and moves the job to failed.
func MarkJobFailed(ctx context.Context, conn *pgxpool.Pool, jobID, reason string) error {
	tag, err := conn.Exec(ctx,
		`UPDATE jobs SET state = $2, error = $3, updated_at = now() WHERE id = $1`,
		jobID, StateFailed, util.SanitizePostgresText(reason))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// SetJobResult stores the extract key and non-fatal build warnings alongside
// the state transition to ready.
func SetJobResult(ctx context.Context, conn *pgxpool.Pool, jobID, extractKey string, warnings []string) error {
	sanitized := make([]string, len(warnings))
	for i, w := range warnings {
		sanitized[i] = util.SanitizePostgresText(w)
	}
	tag, err := conn.Exec(ctx,
		`UPDATE jobs SET state = $2, extract_key = $3, warnings = $4, error = '', updated_at = now() WHERE id = $1`,
		jobID, StateReady, extractKey, sanitized)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// DeleteJob removes the job row.
func DeleteJob(ctx context.Context, conn *pgxpool.Pool, jobID string) error {
	tag, err := conn.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ListStaleBuildingJobs returns jobs that have been in the building state
// longer than maxAge, meaning a worker died mid-build.
func ListStaleBuildingJobs(ctx context.Context, conn *pgxpool.Pool, maxAge time.Duration) ([]Job, error) {
	return listJobs(ctx, conn,
		`SELECT `+jobColumns+` FROM jobs
		WHERE state = $1 AND updated_at < now() - $2::interval
		ORDER BY updated_at ASC`,
		StateBuilding, maxAge.String())
}

// IsJobOwner reports whether the user owns the job.
func IsJobOwner(ctx context.Context, conn *pgxpool.Pool, jobID string, userID int32) (bool, error) {
	var count int
	err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE id = $1 AND owner_id = $2`, jobID, userID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
