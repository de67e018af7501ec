package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/domain/entity"
)

// SequenceService manages approval sequence definitions
type SequenceService interface {
	CreateSequence(ctx context.Context, seq *entity.ApprovalSequence) error
	ListSequences(ctx context.Context) ([]*entity.ApprovalSequence, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type sequenceServiceImpl struct {
	sequences port.SequenceRepository
	logger    Logger
}

// NewSequenceService creates a new SequenceService
func NewSequenceService(sequences port.SequenceRepository, logger Logger) SequenceService {
	return &sequenceServiceImpl{
		sequences: sequences,
		logger:    logger,
	}
}

// CreateSequence validates and stores a new approval sequence
func (s *sequenceServiceImpl) CreateSequence(ctx context.Context, seq *entity.ApprovalSequence) error {
	if seq.ID == "" {
		seq.ID = uuid.NewString()
	}
	if err := seq.Validate(); err != nil {
		return err
	}

	if err := s.sequences.Create(ctx, seq); err != nil {
		s.logger.Error("Failed to create sequence", "error", err, "sequence_id", seq.ID)
		return err
	}

	s.logger.Info("Sequence created",
		"sequence_id", seq.ID,
		"name", seq.Name,
		"steps", len(seq.Steps))
	return nil
}

// ListSequences returns all configured sequences
func (s *sequenceServiceImpl) ListSequences(ctx context.Context) ([]*entity.ApprovalSequence, error) {
	return s.sequences.List(ctx)
}

// SetActive toggles a sequence's active flag. Rules referencing an
// inactive sequence fall back to the legacy chain.
func (s *sequenceServiceImpl) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.sequences.SetActive(ctx, id, active); err != nil {
		s.logger.Error("Failed to toggle sequence", "error", err, "sequence_id", id)
		return err
	}
	s.logger.Info("Sequence toggled", "sequence_id", id, "active", active)
	return nil
}
