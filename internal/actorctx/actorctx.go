// Package actorctx carries the authenticated actor on a plain
// context.Context, so non-HTTP layers can log and scope without seeing gin.
package actorctx

import "context"

type ctxKey string

const keyUserID ctxKey = "actor.user_id"

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserIDFrom(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(keyUserID).(int64)

	return v, ok && v != 0
}
