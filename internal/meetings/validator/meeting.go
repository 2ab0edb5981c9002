package validator

import (
	"minidoodle/pkg/logger"
	"minidoodle/pkg/model"
	"minidoodle/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type MeetingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewMeetingValidator(log *logger.Logger) *MeetingValidator {
	log.Info("Meeting validator initialized successfully")

	return &MeetingValidator{
		validate: validation.New(),
		logger:   log,
	}
}

func (v *MeetingValidator) Validate(in *model.MeetingInput) error {
	return validation.Struct(v.validate, in)
}

func (v *MeetingValidator) ValidateUpdate(update *model.MeetingUpdate) error {
	return validation.Struct(v.validate, update)
}
