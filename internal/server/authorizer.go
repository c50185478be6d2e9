package server

import (
	"fmt"

	"github.com/zeusync/entisync/internal/core/protocol"
)

// Op is an entity operation a client asks the server to apply or relay.
type Op string

const (
	OpUpdate  Op = "update"
	OpDestroy Op = "destroy"
	OpAction  Op = "action"
)

// Authorization modes accepted in Config.
const (
	AuthorizationTrust = "trust"
	AuthorizationOwner = "owner"
)

// Authorizer decides whether userID may apply op to entity. It runs on the
// event loop and must not block.
type Authorizer interface {
	Authorize(op Op, userID string, entity protocol.NetworkEntity) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(op Op, userID string, entity protocol.NetworkEntity) error

func (f AuthorizerFunc) Authorize(op Op, userID string, entity protocol.NetworkEntity) error {
	return f(op, userID, entity)
}

// TrustAll allows everything. Any client may update or destroy any entity.
type TrustAll struct{}

func (TrustAll) Authorize(Op, string, protocol.NetworkEntity) error {
	return nil
}

// OwnerOnly rejects updates and destroys of client-owned entities coming
// from anyone but the owner. World-owned entities and actions stay open.
type OwnerOnly struct{}

func (OwnerOnly) Authorize(op Op, userID string, entity protocol.NetworkEntity) error {
	if op == OpAction || entity.Owner == "" || entity.Owner == userID {
		return nil
	}
	return fmt.Errorf("%w: %s of entity %d owned by %s", ErrUnauthorized, op, entity.ID, entity.Owner)
}

// NewAuthorizer maps a configured mode to an Authorizer.
func NewAuthorizer(mode string) (Authorizer, error) {
	switch mode {
	case "", AuthorizationTrust:
		return TrustAll{}, nil
	case AuthorizationOwner:
		return OwnerOnly{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAuthorizer, mode)
	}
}
