package service

import (
	"context"
	"errors"
	"sync"

	userserrors "minidoodle/internal/users/errors"
	"minidoodle/internal/users/repository"
	"minidoodle/internal/users/validator"
	"minidoodle/pkg/config"
	apperrors "minidoodle/pkg/errors"
	"minidoodle/pkg/model"
	"minidoodle/pkg/sanitizer"
	"minidoodle/pkg/validation"
)

type UserService interface {
	Create(ctx context.Context, in *model.UserInput) (*model.UserDetails, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.User, int64, error)
	Update(ctx context.Context, id string, updates *model.UserUpdate) (*model.User, error)
	GetCalendar(ctx context.Context, userID string) (*model.Calendar, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.UserValidator
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	validator *validator.UserValidator,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *userService) Create(ctx context.Context, in *model.UserInput) (*model.UserDetails, error) {
	in.Email = sanitizer.SanitizeEmail(in.Email)
	in.Name = sanitizer.NormalizeName(in.Name)
	if err := s.validate(s.validator.Validate(in)); err != nil {
		return nil, err
	}

	timezone := in.Timezone
	if timezone == "" {
		timezone = s.cfg.DefaultTimezone
	}

	user := &model.User{Email: in.Email, Name: in.Name}
	calendar := &model.Calendar{Timezone: timezone}
	if err := s.repo.Create(ctx, user, calendar); err != nil {
		if errors.Is(err, userserrors.ErrEmailTaken) {
			s.cfg.Log.Warn("User email already registered", "email", in.Email)
			return nil, apperrors.Conflict("A user with this email already exists").WithCause(err)
		}
		s.cfg.Log.Error("Failed to create user", "error", err)
		return nil, apperrors.Internal("Failed to create user", err)
	}

	s.cfg.Log.Info("User created successfully",
		"id", user.ID,
		"calendar_id", calendar.ID,
		"timezone", calendar.Timezone,
	)
	return &model.UserDetails{User: user, Calendar: calendar}, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to retrieve user")
	}
	return user, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = sanitizer.SanitizeEmail(email)
	if email == "" {
		return nil, apperrors.InvalidInput("Email cannot be empty")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.mapError(err, email, "Failed to retrieve user")
	}
	return user, nil
}

func (s *userService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.User, int64, error) {
	var count int64
	var users []*model.User
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count users", "error", errCount)
			errCount = apperrors.Internal("Failed to count users", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		users, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list users", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve users", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return users, count, nil
}

func (s *userService) Update(ctx context.Context, id string, updates *model.UserUpdate) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	updates.Email = sanitizer.SanitizeEmail(updates.Email)
	updates.Name = sanitizer.NormalizeName(updates.Name)
	if err := s.validate(s.validator.ValidateUpdate(updates)); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to check user existence")
	}

	if updates.Email != "" {
		existing.Email = updates.Email
	}
	if updates.Name != "" {
		existing.Name = updates.Name
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		s.cfg.Log.Warn("Failed to update user", "id", id, "error", err)
		return nil, s.mapError(err, id, "Failed to update user")
	}

	s.cfg.Log.Info("User updated successfully", "id", id)
	return existing, nil
}

func (s *userService) GetCalendar(ctx context.Context, userID string) (*model.Calendar, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	calendar, err := s.repo.FindCalendarByUserID(ctx, userID)
	if err != nil {
		return nil, s.mapError(err, userID, "Failed to retrieve calendar")
	}
	return calendar, nil
}

// --- Helpers ---

func (s *userService) validate(err error) error {
	if err == nil {
		return nil
	}
	s.cfg.Log.Warn("User validation failed", "error", err)

	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("User validation failed", verrs.Details())
	}
	return apperrors.Validation("User validation failed", map[string]any{"error": err.Error()})
}

func (s *userService) mapError(err error, id, msg string) error {
	switch {
	case errors.Is(err, userserrors.ErrUserNotFound):
		return apperrors.NotFoundWithID("User", id).WithCause(err)
	case errors.Is(err, userserrors.ErrCalendarNotFound):
		return apperrors.NotFoundWithID("Calendar", id).WithCause(err)
	case errors.Is(err, userserrors.ErrEmailTaken):
		return apperrors.Conflict("A user with this email already exists").WithCause(err)
	}
	return apperrors.Internal(msg, err)
}
