package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/database"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// TxFunc runs fn inside one transaction; every repository call made with the
// context passed to fn joins it. Unit tests pass PassthroughTx.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTxFunc returns the TxFunc backed by the request connection.
func NewTxFunc() TxFunc {
	return database.WithTx
}

// PassthroughTx calls fn directly without a transaction.
func PassthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Clock returns the current time. Injected so staleness checks are testable.
type Clock func() time.Time

// actorSubject returns the authenticated subject, failing when none is attached.
func actorSubject(ctx context.Context) (string, error) {
	actor, ok := models.GetActor(ctx)
	if !ok {
		return "", apperrors.Validation("caller identity is required")
	}
	return actor.Subject, nil
}

// optionalSubject returns the authenticated subject or "" when there is none.
func optionalSubject(ctx context.Context) string {
	actor, _ := models.GetActor(ctx)
	return actor.Subject
}

// requireFound converts an existence check into a NotFound error.
func requireFound(exists bool, err error, entity string, id uuid.UUID) error {
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NotFound(entity, id)
	}
	return nil
}
