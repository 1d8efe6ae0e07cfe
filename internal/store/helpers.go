package store

import (
	"database/sql"
	"fmt"

	"github.com/fizzycl/partsflow/internal/models"
)

// scanStepRow scans a TrackerStep from a single sql.Row, mapping
// sql.ErrNoRows to ErrNotFound. The status column holds the state ordinal as
// text.
func scanStepRow(row *sql.Row, trackerID string) (models.TrackerStep, error) {
	var step models.TrackerStep
	var status string
	err := row.Scan(&step.ID, &step.TrackerID, &step.Timestamp, &status,
		&step.Value, &step.AttachedFiles, &step.MessageReference)
	if err == sql.ErrNoRows {
		return models.TrackerStep{}, ErrNotFound
	}
	if err != nil {
		return models.TrackerStep{}, fmt.Errorf("failed to scan step for tracker %s: %w", trackerID, err)
	}
	state, err := models.StateFromStatus(status)
	if err != nil {
		return models.TrackerStep{}, fmt.Errorf("corrupt status for tracker %s: %w", trackerID, err)
	}
	step.Status = state
	return step, nil
}
