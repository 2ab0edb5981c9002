package validator

import (
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"
	"minidoodle/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type UserValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewUserValidator(log *logger.Logger) *UserValidator {
	log.Info("User validator initialized successfully")

	return &UserValidator{
		validate: validation.New(),
		logger:   log,
	}
}

func (v *UserValidator) Validate(in *model.UserInput) error {
	return validation.Struct(v.validate, in)
}

func (v *UserValidator) ValidateUpdate(update *model.UserUpdate) error {
	return validation.Struct(v.validate, update)
}
