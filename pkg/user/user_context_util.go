package user

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const UserIdKey contextKey = "userId"

var (
	ErrNoUser       = errors.New("user not found")
	ErrUserMismatch = errors.New("user id does not match the caller")
)

// CurrentId retrieves the caller's id from the context. Returns ErrNoUser if the id is not present.
func CurrentId(ctx context.Context) (string, error) {
	id, ok := ctx.Value(UserIdKey).(string)
	if !ok || id == "" {
		log.Trace("user id not found in context")
		return "", ErrNoUser
	}
	return id, nil
}

func WithId(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, UserIdKey, strings.TrimSpace(userId))
}

// ResolveId returns the caller id for a request that may also carry a userId in its body.
// The body id is used when the context has none; both present and different is an error.
func ResolveId(ctx context.Context, bodyUserId string) (string, error) {
	bodyUserId = strings.TrimSpace(bodyUserId)
	ctxId, err := CurrentId(ctx)
	if err != nil {
		if bodyUserId == "" {
			return "", err
		}
		return bodyUserId, nil
	}
	if bodyUserId != "" && bodyUserId != ctxId {
		return "", ErrUserMismatch
	}
	return ctxId, nil
}
