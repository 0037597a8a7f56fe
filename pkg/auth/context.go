package auth

import (
	"context"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// withIdentity stores claims, the raw token and the derived actor in ctx.
func withIdentity(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	ctx = context.WithValue(ctx, TokenKey, token)
	return models.WithActor(ctx, models.Actor{Subject: claims.Subject, Source: models.ActorSourceAPI})
}
