package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/logishift/internal/types"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Artifact steps.
const (
	StepCollected   = "collected"
	StepScoreReport = "score_report"
	StepRunReport   = "run_report"
)

// Run is a row of pipeline_runs.
type Run struct {
	ID             uuid.UUID
	Status         string
	DryRun         bool
	Threshold      int
	Collected      int
	Scored         int
	AboveThreshold int
	Generated      int
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func insertRunQuery(runID uuid.UUID, dryRun bool, threshold int) sq.InsertBuilder {
	return psql.Insert("pipeline_runs").
		Columns("id", "status", "dry_run", "threshold").
		Values(runID, RunStatusRunning, dryRun, threshold)
}

func completeRunQuery(runID uuid.UUID, report *types.RunReport, status string) sq.UpdateBuilder {
	return psql.Update("pipeline_runs").
		Set("status", status).
		Set("collected", report.Collected).
		Set("scored", report.Scored).
		Set("above_threshold", report.AboveThreshold).
		Set("generated", report.Generated()).
		Set("completed_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": runID})
}

func saveArtifactQuery(runID uuid.UUID, step string, content []byte) sq.InsertBuilder {
	return psql.Insert("run_artifacts").
		Columns("run_id", "step", "content").
		Values(runID, step, content).
		Suffix("ON CONFLICT (run_id, step) DO UPDATE SET content = EXCLUDED.content, created_at = NOW()")
}

func recordOutcomeQuery(runID uuid.UUID, o types.ItemOutcome) sq.InsertBuilder {
	var postID any
	if o.PostID > 0 {
		postID = o.PostID
	}
	return psql.Insert("generated_articles").
		Columns("id", "run_id", "source_title", "source_url", "score", "article_type",
			"status", "reason", "generated_title", "post_id", "link").
		Values(uuid.New(), runID, o.Title, o.URL, o.Score, string(o.Type),
			string(o.Status), o.Reason, o.GeneratedTitle, postID, o.Link)
}

func recentTitlesQuery(since time.Time, limit int) sq.SelectBuilder {
	return psql.Select("source_title").
		From("generated_articles").
		Where(sq.Eq{"status": string(types.StatusPublished)}).
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
}

// CreateRun inserts a running pipeline_runs row.
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, dryRun bool, threshold int) error {
	if err := db.exec(ctx, insertRunQuery(runID, dryRun, threshold)); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun stores the final counts of a run.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, report *types.RunReport, status string) error {
	if err := db.exec(ctx, completeRunQuery(runID, report, status)); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// SaveArtifact stores a JSON artifact for a run, replacing any previous one
// for the same step.
func (db *DB) SaveArtifact(ctx context.Context, runID uuid.UUID, step string, content any) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if err := db.exec(ctx, saveArtifactQuery(runID, step, data)); err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", step, err)
	}
	return nil
}

// RecordOutcome stores what happened to one candidate.
func (db *DB) RecordOutcome(ctx context.Context, runID uuid.UUID, outcome types.ItemOutcome) error {
	if err := db.exec(ctx, recordOutcomeQuery(runID, outcome)); err != nil {
		return fmt.Errorf("failed to record outcome for %q: %w", outcome.Title, err)
	}
	return nil
}

// RecentTitles returns the source titles of articles published since the
// given time, newest first. Dry-run outcomes are excluded since nothing
// reached the CMS.
func (db *DB) RecentTitles(ctx context.Context, since time.Time, limit int) ([]string, error) {
	query, args, err := recentTitlesQuery(since, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent titles: %w", err)
	}
	titles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read recent titles: %w", err)
	}
	return titles, nil
}

// GetRun retrieves a pipeline run by ID. It returns nil when no run exists.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	query, args, err := psql.Select("id", "status", "dry_run", "threshold", "collected",
		"scored", "above_threshold", "generated", "created_at", "completed_at").
		From("pipeline_runs").
		Where(sq.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var run Run
	err = db.pool.QueryRow(ctx, query, args...).Scan(&run.ID, &run.Status, &run.DryRun,
		&run.Threshold, &run.Collected, &run.Scored, &run.AboveThreshold, &run.Generated,
		&run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}
