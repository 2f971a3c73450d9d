package model

import (
	"context"

	"github.com/google/uuid"
)

// ContextManager moves the authenticated caller through request
// contexts: the internal user ID and the public identity used for
// message routing.
type ContextManager interface {
	SetUserIDToContext(ctx context.Context, userID uuid.UUID) context.Context
	GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool)
	SetIdentityToContext(ctx context.Context, identity string) context.Context
	GetIdentityFromContext(ctx context.Context) (string, bool)
}
