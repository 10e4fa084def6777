package service

import (
	"errors"

	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
	dErrors "customerhub/pkg/domain-errors"
	"customerhub/pkg/platform/sentinel"
)

// wrapStoreErr translates store failures into coded errors.
func wrapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "customer not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "customer was modified concurrently, retry the request")
	case errors.Is(err, models.ErrDuplicateEmail):
		return duplicateEmailErr()
	case errors.Is(err, models.ErrDuplicateIdentityNumber):
		return duplicateIdentityErr()
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "customer already exists")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "customer store unavailable")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "customer store failure")
}

func duplicateEmailErr() error {
	return dErrors.Wrap(models.ErrDuplicateEmail, dErrors.CodeConflict, "email is already registered")
}

func duplicateIdentityErr() error {
	return dErrors.Wrap(models.ErrDuplicateIdentityNumber, dErrors.CodeConflict, "identity number is already registered")
}

func requireCustomerID(customerID id.CustomerID) error {
	if customerID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "customer id is required")
	}
	return nil
}
