package repositories

import (
	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
)

func validationError(err error) error {
	return apperrors.Validation("%v", err)
}

// translate maps a datastore error to an application error, replacing the
// generic conflict text with a per-constraint message when one is known.
func translate(op string, err error, conflicts map[string]string) error {
	if name := apperrors.ConstraintName(err); name != "" {
		if msg, ok := conflicts[name]; ok {
			return apperrors.Conflict("%s", msg)
		}
	}
	return apperrors.FromPg(op, err)
}
