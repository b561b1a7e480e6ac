package storage

import (
	"database/sql"
	"fmt"
)

// InstanceStats summarizes run history for one instance
type InstanceStats struct {
	Instance      int     `json:"instance"`
	TotalRuns     int     `json:"total_runs"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	LastStatus    string  `json:"last_status,omitempty"`
	LastStartedAt string  `json:"last_started_at,omitempty"`
	LastDuration  *string `json:"last_duration,omitempty"`
}

// GetInstanceStats returns aggregate run counts plus the most recent run
// per instance
func (s *Storage) GetInstanceStats(instance int) (*InstanceStats, error) {
	stats := &InstanceStats{Instance: instance}

	err := s.db.QueryRow(
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs WHERE instance = ?`,
		instance,
	).Scan(&stats.TotalRuns, &stats.Succeeded, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to query instance stats: %w", err)
	}

	var lastStatus, lastStartedAt sql.NullString
	var lastDuration sql.NullString
	err = s.db.QueryRow(
		"SELECT status, started_at, duration FROM runs WHERE instance = ? ORDER BY started_at DESC LIMIT 1",
		instance,
	).Scan(&lastStatus, &lastStartedAt, &lastDuration)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	if lastStatus.Valid {
		stats.LastStatus = lastStatus.String
	}
	if lastStartedAt.Valid {
		stats.LastStartedAt = lastStartedAt.String
	}
	if lastDuration.Valid {
		durationStr := lastDuration.String
		stats.LastDuration = &durationStr
	}

	return stats, nil
}
