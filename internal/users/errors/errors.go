package errors

import apperrors "minidoodle/pkg/errors"

var (
	ErrUserNotFound = apperrors.Reason("UserNotFound", "user not found")

	ErrEmailTaken = apperrors.Reason("EmailTaken", "a user with this email already exists")

	ErrCalendarNotFound = apperrors.Reason("CalendarNotFound", "calendar not found")
)
