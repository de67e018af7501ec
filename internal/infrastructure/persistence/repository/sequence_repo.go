package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/domain/entity"
)

// SequenceRepository implements port.SequenceRepository over sqlite.
// Steps live in approval_sequence_steps keyed by (sequence_id, step).
type SequenceRepository struct {
	db     *sql.DB
	tx     port.TransactionManager
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *sql.DB, tx port.TransactionManager, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{
		db:     db,
		tx:     tx,
		logger: logger,
	}
}

// Create persists a sequence and its steps
func (r *SequenceRepository) Create(ctx context.Context, seq *entity.ApprovalSequence) error {
	return r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := getExecutor(txCtx, r.db)

		_, err := ex.ExecContext(txCtx,
			`INSERT INTO approval_sequences (id, name, is_active) VALUES (?, ?, ?)`,
			seq.ID, seq.Name, seq.IsActive)
		if err != nil {
			r.logger.Error("Failed to create sequence", zap.String("id", seq.ID), zap.Error(err))
			return fmt.Errorf("failed to create sequence: %w", err)
		}

		for _, step := range seq.Steps {
			if _, err := ex.ExecContext(txCtx,
				`INSERT INTO approval_sequence_steps (sequence_id, step, kind, value) VALUES (?, ?, ?, ?)`,
				seq.ID, step.Step, string(step.Kind), step.Value); err != nil {
				return fmt.Errorf("failed to create sequence step %d: %w", step.Step, err)
			}
		}
		return nil
	})
}

// GetByID retrieves a sequence with its steps, or nil when absent
func (r *SequenceRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalSequence, error) {
	var seq entity.ApprovalSequence
	err := getExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, is_active FROM approval_sequences WHERE id = ?`, id).
		Scan(&seq.ID, &seq.Name, &seq.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get sequence", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}

	if err := r.loadSteps(ctx, &seq); err != nil {
		return nil, err
	}
	return &seq, nil
}

// List retrieves all sequences with their steps
func (r *SequenceRepository) List(ctx context.Context) ([]*entity.ApprovalSequence, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx,
		`SELECT id, name, is_active FROM approval_sequences ORDER BY name ASC`)
	if err != nil {
		r.logger.Error("Failed to list sequences", zap.Error(err))
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}
	defer rows.Close()

	var sequences []*entity.ApprovalSequence
	for rows.Next() {
		var seq entity.ApprovalSequence
		if err := rows.Scan(&seq.ID, &seq.Name, &seq.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan sequence: %w", err)
		}
		sequences = append(sequences, &seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, seq := range sequences {
		if err := r.loadSteps(ctx, seq); err != nil {
			return nil, err
		}
	}
	return sequences, nil
}

// SetActive toggles a sequence's active flag
func (r *SequenceRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE approval_sequences SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		r.logger.Error("Failed to toggle sequence", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to toggle sequence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sequence %s not found", id)
	}
	return nil
}

func (r *SequenceRepository) loadSteps(ctx context.Context, seq *entity.ApprovalSequence) error {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx,
		`SELECT step, kind, value FROM approval_sequence_steps
		 WHERE sequence_id = ? ORDER BY step ASC`, seq.ID)
	if err != nil {
		return fmt.Errorf("failed to load sequence steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step entity.SequenceStep
		var kind string
		if err := rows.Scan(&step.Step, &kind, &step.Value); err != nil {
			return err
		}
		step.Kind = entity.StepKind(kind)
		seq.Steps = append(seq.Steps, step)
	}
	return rows.Err()
}

// Verify interface compliance
var _ port.SequenceRepository = (*SequenceRepository)(nil)
