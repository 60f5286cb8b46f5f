package service

import appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"

// internalError reports a 500 with message, keeping err as the cause.
func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// invalidInput reports a 400 VALIDATION_ERROR, typically for a validator failure.
func invalidInput(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
