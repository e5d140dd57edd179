package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"podscript/internal/services"
)

// Create inserts a new run. Status defaults to running.
func (s *Store) Create(ctx context.Context, ep *Episode) error {
	if ep == nil {
		return errors.New("episode is nil")
	}
	if strings.TrimSpace(ep.RunID) == "" {
		return services.Wrap(services.ErrValidation, "store", "create", "run id required", nil)
	}
	now := time.Now().UTC()
	if ep.Status == "" {
		ep.Status = StatusRunning
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}
	ep.UpdatedAt = now

	_, err := s.execWithRetry(ctx,
		`INSERT INTO episodes (`+episodeColumns+`) VALUES (`+makePlaceholders(15)+`)`,
		ep.RunID,
		ep.Name,
		string(ep.Status),
		ep.State,
		nullableIndex(ep.SegmentIndex),
		ep.SegmentCount,
		nullableString(ep.ErrorMessage),
		nullableString(ep.OutputDir),
		nullableString(ep.OutlineProvider),
		nullableString(ep.OutlineModel),
		nullableString(ep.TranscriptProvider),
		nullableString(ep.TranscriptModel),
		encodeSkipped(ep.Skipped),
		timestamp(ep.CreatedAt),
		timestamp(ep.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// Transition records a state change for a running episode. A negative
// segmentIndex clears the column.
func (s *Store) Transition(ctx context.Context, runID, state string, segmentIndex, segmentCount int, skipped []int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes
         SET state = ?, segment_index = ?, segment_count = ?, skipped = ?, updated_at = ?
         WHERE run_id = ?`,
		state,
		nullableIndex(segmentIndex),
		segmentCount,
		encodeSkipped(skipped),
		timestamp(time.Now()),
		runID,
	)
	if err != nil {
		return fmt.Errorf("update episode state: %w", err)
	}
	return requireAffected(res, runID)
}

// Complete marks a run finished. status is complete, or partial when segments
// were skipped.
func (s *Store) Complete(ctx context.Context, runID string, status Status, skipped []int) error {
	if status == "" {
		status = StatusComplete
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes
         SET status = ?, state = ?, skipped = ?, error_message = NULL, updated_at = ?
         WHERE run_id = ?`,
		string(status),
		StateComplete,
		encodeSkipped(skipped),
		timestamp(time.Now()),
		runID,
	)
	if err != nil {
		return fmt.Errorf("complete episode: %w", err)
	}
	return requireAffected(res, runID)
}

// Fail marks a run failed (or partial) with the reason shown to operators.
func (s *Store) Fail(ctx context.Context, runID string, status Status, message string) error {
	if status == "" {
		status = StatusFailed
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes
         SET status = ?, state = ?, error_message = ?, updated_at = ?
         WHERE run_id = ?`,
		string(status),
		StateFailed,
		nullableString(message),
		timestamp(time.Now()),
		runID,
	)
	if err != nil {
		return fmt.Errorf("fail episode: %w", err)
	}
	return requireAffected(res, runID)
}

// SetOutputDir records where artifacts were written.
func (s *Store) SetOutputDir(ctx context.Context, runID, dir string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes SET output_dir = ?, updated_at = ? WHERE run_id = ?`,
		nullableString(dir),
		timestamp(time.Now()),
		runID,
	)
	if err != nil {
		return fmt.Errorf("set output dir: %w", err)
	}
	return requireAffected(res, runID)
}

// Get returns the run with the exact id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, runID string) (*Episode, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+episodeColumns+` FROM episodes WHERE run_id = ?`, runID)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}

// Resolve finds the single run whose id starts with prefix.
func (s *Store) Resolve(ctx context.Context, prefix string) (*Episode, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "resolve", "run id required", nil)
	}
	if ep, err := s.Get(ctx, prefix); err != nil || ep != nil {
		return ep, err
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+episodeColumns+` FROM episodes WHERE run_id LIKE ? ORDER BY created_at DESC LIMIT 2`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("resolve episode: %w", err)
	}
	defer rows.Close()
	var matches []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		matches = append(matches, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, services.Wrap(services.ErrNotFound, "store", "resolve", fmt.Sprintf("no episode matches %q", prefix), nil)
	case 1:
		return matches[0], nil
	default:
		return nil, services.Wrap(services.ErrValidation, "store", "resolve", fmt.Sprintf("run id prefix %q is ambiguous", prefix), nil)
	}
}

// List returns runs newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at DESC, run_id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// Stats counts runs per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM episodes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("episode stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// Remove deletes one run. It reports whether a row was removed.
func (s *Store) Remove(ctx context.Context, runID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM episodes WHERE run_id = ?`, runID)
	if err != nil {
		return false, fmt.Errorf("remove episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearFinished deletes every run that is no longer running.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	args := make([]any, 0, len(FinishedStatuses))
	for _, status := range FinishedStatuses {
		args = append(args, string(status))
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM episodes WHERE status IN (`+makePlaceholders(len(args))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear finished episodes: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result, runID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update", fmt.Sprintf("episode %s", runID), nil)
	}
	return nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer("%", "", "_", "")
	return replacer.Replace(value)
}
