package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/domain/entity"
)

// RuleRepository implements port.RuleRepository. The approval_rule table
// holds at most one row (id fixed at 1); Replace upserts it.
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the configured rule, or nil when none was ever saved
func (r *RuleRepository) Get(ctx context.Context) (*entity.ApprovalRule, error) {
	query := `
		SELECT type, threshold, specific_approver_id, sequence_id
		FROM approval_rule
		WHERE id = 1
	`

	var rule entity.ApprovalRule
	var ruleType string
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query).Scan(
		&ruleType,
		&rule.Threshold,
		&rule.SpecificApproverID,
		&rule.SequenceID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval rule", zap.Error(err))
		return nil, fmt.Errorf("failed to get approval rule: %w", err)
	}
	rule.Type = entity.RuleType(ruleType)
	return &rule, nil
}

// Replace upserts the singleton rule row
func (r *RuleRepository) Replace(ctx context.Context, rule entity.ApprovalRule) error {
	query := `
		INSERT INTO approval_rule (id, type, threshold, specific_approver_id, sequence_id, updated_at)
		VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			threshold = excluded.threshold,
			specific_approver_id = excluded.specific_approver_id,
			sequence_id = excluded.sequence_id,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		string(rule.Type),
		rule.Threshold,
		rule.SpecificApproverID,
		rule.SequenceID,
	)
	if err != nil {
		r.logger.Error("Failed to replace approval rule", zap.Error(err))
		return fmt.Errorf("failed to replace approval rule: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.RuleRepository = (*RuleRepository)(nil)
