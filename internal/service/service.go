// Package service runs policy decisions around note store operations.
// Transport layers call Service, never the store directly.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"example.com/coursenotes/internal/identity"
	"example.com/coursenotes/internal/notes"
	"example.com/coursenotes/internal/policy"
	"example.com/coursenotes/internal/stringsx"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// ForbiddenError is a policy denial. errors.Is(err, ErrForbidden) matches it.
type ForbiddenError struct {
	Action policy.Action
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// ValidationError maps field names to what is wrong with them.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Repository is the storage the service needs. Lookups by id return
// (nil, nil) when the note does not exist.
type Repository interface {
	All(ctx context.Context) ([]notes.Note, error)
	ByUser(ctx context.Context, userID int64) ([]notes.Note, error)
	ByCourse(ctx context.Context, courseID int64) ([]notes.Note, error)
	ByID(ctx context.Context, id string) (*notes.Note, error)
	Create(ctx context.Context, in notes.NewNote) (notes.Note, error)
	Update(ctx context.Context, id string, p notes.Patch) (*notes.Note, error)
	Delete(ctx context.Context, id string) (bool, error)
	StatsByUser(ctx context.Context) ([]notes.UserCount, error)
	StatsByCourse(ctx context.Context) ([]notes.CourseCount, error)
}

type CreateInput struct {
	Title    *string `json:"title"`
	Content  string  `json:"content"`
	CourseID int64   `json:"courseId"`
}

// UpdateInput is a partial update. UserID and CourseID exist only so that
// attempts to change them can be rejected.
type UpdateInput struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	UserID   *int64  `json:"userId"`
	CourseID *int64  `json:"courseId"`
}

type Stats struct {
	StatsByUser   []notes.UserCount   `json:"statsByUser"`
	StatsByCourse []notes.CourseCount `json:"statsByCourse"`
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func New(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns every note. Admin only.
func (s *Service) List(ctx context.Context, who identity.Identity) ([]notes.Note, error) {
	if err := s.authorize(who, policy.ReadAll, 0); err != nil {
		return nil, err
	}
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, s.internal(who, policy.ReadAll, err)
	}
	return all, nil
}

func (s *Service) ListByUser(ctx context.Context, who identity.Identity, userID int64) ([]notes.Note, error) {
	if err := s.authorize(who, policy.ReadByUser, userID); err != nil {
		return nil, err
	}
	list, err := s.repo.ByUser(ctx, userID)
	if err != nil {
		return nil, s.internal(who, policy.ReadByUser, err)
	}
	return list, nil
}

// ListByCourse returns the course's notes. Non-admins only see their own.
func (s *Service) ListByCourse(ctx context.Context, who identity.Identity, courseID int64) ([]notes.Note, error) {
	if err := s.authorize(who, policy.ReadByCourse, 0); err != nil {
		return nil, err
	}
	list, err := s.repo.ByCourse(ctx, courseID)
	if err != nil {
		return nil, s.internal(who, policy.ReadByCourse, err)
	}
	if who.IsAdmin() {
		return list, nil
	}

	own := make([]notes.Note, 0, len(list))
	for _, n := range list {
		if n.UserID == who.ID {
			own = append(own, n)
		}
	}
	return own, nil
}

// Get reports ErrNotFound before any ownership check.
func (s *Service) Get(ctx context.Context, who identity.Identity, id string) (notes.Note, error) {
	n, err := s.existing(ctx, who, policy.ReadOne, id)
	if err != nil {
		return notes.Note{}, err
	}
	if err := s.authorize(who, policy.ReadOne, n.UserID); err != nil {
		return notes.Note{}, err
	}
	return *n, nil
}

// Create stores a note owned by the caller.
func (s *Service) Create(ctx context.Context, who identity.Identity, in CreateInput) (notes.Note, error) {
	if err := s.authorize(who, policy.Create, who.ID); err != nil {
		return notes.Note{}, err
	}
	if err := validateCreate(in); err != nil {
		return notes.Note{}, err
	}

	n, err := s.repo.Create(ctx, notes.NewNote{
		Title:    stringsx.TrimPtr(in.Title),
		Content:  in.Content,
		UserID:   who.ID,
		CourseID: in.CourseID,
	})
	if err != nil {
		return notes.Note{}, s.internal(who, policy.Create, err)
	}
	s.logger.Info("note created", "note_id", n.ID, "user_id", who.ID, "course_id", n.CourseID)
	return n, nil
}

// Update is owner-only; admins get no override here.
func (s *Service) Update(ctx context.Context, who identity.Identity, id string, in UpdateInput) (notes.Note, error) {
	if err := validateUpdate(in); err != nil {
		return notes.Note{}, err
	}
	n, err := s.existing(ctx, who, policy.Update, id)
	if err != nil {
		return notes.Note{}, err
	}
	if err := s.authorize(who, policy.Update, n.UserID); err != nil {
		return notes.Note{}, err
	}

	updated, err := s.repo.Update(ctx, id, notes.Patch{
		Title:   stringsx.TrimPtr(in.Title),
		Content: in.Content,
	})
	if err != nil {
		return notes.Note{}, s.internal(who, policy.Update, err)
	}
	// Deleted between the ownership check and the write.
	if updated == nil {
		return notes.Note{}, ErrNotFound
	}
	return *updated, nil
}

func (s *Service) Delete(ctx context.Context, who identity.Identity, id string) error {
	n, err := s.existing(ctx, who, policy.Delete, id)
	if err != nil {
		return err
	}
	if err := s.authorize(who, policy.Delete, n.UserID); err != nil {
		return err
	}

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return s.internal(who, policy.Delete, err)
	}
	if !ok {
		return ErrNotFound
	}
	s.logger.Info("note deleted", "note_id", id, "user_id", who.ID)
	return nil
}

// Stats returns note counts per user and per course. Admin only.
func (s *Service) Stats(ctx context.Context, who identity.Identity) (Stats, error) {
	if err := s.authorize(who, policy.ReadStats, 0); err != nil {
		return Stats{}, err
	}
	byUser, err := s.repo.StatsByUser(ctx)
	if err != nil {
		return Stats{}, s.internal(who, policy.ReadStats, err)
	}
	byCourse, err := s.repo.StatsByCourse(ctx)
	if err != nil {
		return Stats{}, s.internal(who, policy.ReadStats, err)
	}
	return Stats{StatsByUser: byUser, StatsByCourse: byCourse}, nil
}

func (s *Service) existing(ctx context.Context, who identity.Identity, action policy.Action, id string) (*notes.Note, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	n, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, s.internal(who, action, err)
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *Service) authorize(who identity.Identity, action policy.Action, ownerID int64) error {
	d := policy.Decide(who, action, ownerID)
	if d.Allowed {
		return nil
	}
	s.logger.Warn("access denied", "user_id", who.ID, "role", who.Role, "action", action, "reason", d.Reason)
	return &ForbiddenError{Action: action, Reason: d.Reason}
}

func (s *Service) internal(who identity.Identity, action policy.Action, err error) error {
	s.logger.Error("note operation failed", "user_id", who.ID, "action", action, "err", err)
	return fmt.Errorf("%s: %w", action, err)
}

func validateCreate(in CreateInput) error {
	fields := map[string]string{}
	if stringsx.IsEmpty(in.Content) {
		fields["content"] = "is required"
	}
	if in.CourseID <= 0 {
		fields["courseId"] = "must be a positive integer"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateUpdate(in UpdateInput) error {
	fields := map[string]string{}
	if in.Content != nil && stringsx.IsEmpty(*in.Content) {
		fields["content"] = "must not be blank"
	}
	if in.UserID != nil {
		fields["userId"] = "cannot be changed"
	}
	if in.CourseID != nil {
		fields["courseId"] = "cannot be changed"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
