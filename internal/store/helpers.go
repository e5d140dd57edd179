package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const episodeColumns = "run_id, name, status, state, segment_index, segment_count, error_message, output_dir, outline_provider, outline_model, transcript_provider, transcript_model, skipped, created_at, updated_at"

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		runID              string
		name               string
		status             string
		state              string
		segmentIndex       sql.NullInt64
		segmentCount       int
		errorMessage       sql.NullString
		outputDir          sql.NullString
		outlineProvider    sql.NullString
		outlineModel       sql.NullString
		transcriptProvider sql.NullString
		transcriptModel    sql.NullString
		skipped            sql.NullString
		createdRaw         string
		updatedRaw         string
	)
	if err := scanner.Scan(
		&runID,
		&name,
		&status,
		&state,
		&segmentIndex,
		&segmentCount,
		&errorMessage,
		&outputDir,
		&outlineProvider,
		&outlineModel,
		&transcriptProvider,
		&transcriptModel,
		&skipped,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	ep := &Episode{
		RunID:              runID,
		Name:               name,
		Status:             Status(status),
		State:              state,
		SegmentIndex:       -1,
		SegmentCount:       segmentCount,
		ErrorMessage:       errorMessage.String,
		OutputDir:          outputDir.String,
		OutlineProvider:    outlineProvider.String,
		OutlineModel:       outlineModel.String,
		TranscriptProvider: transcriptProvider.String,
		TranscriptModel:    transcriptModel.String,
	}
	if segmentIndex.Valid {
		ep.SegmentIndex = int(segmentIndex.Int64)
	}
	if skipped.Valid && skipped.String != "" {
		if err := json.Unmarshal([]byte(skipped.String), &ep.Skipped); err != nil {
			return nil, fmt.Errorf("decode skipped segments for %s: %w", runID, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		ep.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		ep.UpdatedAt = updated
	}
	return ep, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableIndex(index int) any {
	if index < 0 {
		return nil
	}
	return index
}

func encodeSkipped(skipped []int) any {
	if len(skipped) == 0 {
		return nil
	}
	data, err := json.Marshal(skipped)
	if err != nil {
		return nil
	}
	return string(data)
}

// timestampLayout keeps a fixed-width fraction so stored values sort
// lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func itoa(v int) string { return strconv.Itoa(v) }
