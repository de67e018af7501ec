package service

import (
	"context"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DirectoryService exposes read-only user and sequence lookups to the
// approval core (it satisfies approval.Directory) plus the directory
// management operations the admin surface needs.
type DirectoryService interface {
	FindUserByID(ctx context.Context, id string) (*entity.User, error)
	FindUsersByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
	GetActiveSequence(ctx context.Context, id string) (*entity.ApprovalSequence, error)

	ListUsers(ctx context.Context) ([]*entity.User, error)
	CreateUser(ctx context.Context, user *entity.User) error
}

type directoryServiceImpl struct {
	users     port.UserRepository
	sequences port.SequenceRepository
	logger    Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(users port.UserRepository, sequences port.SequenceRepository, logger Logger) DirectoryService {
	return &directoryServiceImpl{
		users:     users,
		sequences: sequences,
		logger:    logger,
	}
}

// FindUserByID returns the user with the given id, or nil when absent
func (s *directoryServiceImpl) FindUserByID(ctx context.Context, id string) (*entity.User, error) {
	if id == "" {
		return nil, nil
	}
	return s.users.GetByID(ctx, id)
}

// FindUsersByRole returns users holding the role, ordered by id
func (s *directoryServiceImpl) FindUsersByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	return s.users.ListByRole(ctx, role)
}

// GetActiveSequence returns the sequence with the given id if it exists
// and is active; nil otherwise. A missing or inactive sequence is not an
// error: callers fall back to the legacy chain.
func (s *directoryServiceImpl) GetActiveSequence(ctx context.Context, id string) (*entity.ApprovalSequence, error) {
	if id == "" {
		return nil, nil
	}
	seq, err := s.sequences.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if seq == nil || !seq.IsActive {
		return nil, nil
	}
	return seq, nil
}

// ListUsers returns all directory users
func (s *directoryServiceImpl) ListUsers(ctx context.Context) ([]*entity.User, error) {
	return s.users.List(ctx)
}

// CreateUser adds a user to the directory
func (s *directoryServiceImpl) CreateUser(ctx context.Context, user *entity.User) error {
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", "error", err, "user_id", user.ID)
		return err
	}
	s.logger.Info("User created", "user_id", user.ID, "role", user.Role)
	return nil
}
