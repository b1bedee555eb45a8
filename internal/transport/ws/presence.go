package ws

import (
	"sort"

	"github.com/google/uuid"
)

// Registry is the single source of truth for who is online. It maps a
// user to their one live connection; a later registration for the same
// user replaces the earlier one. The Hub owns it exclusively: every
// mutation happens on the Hub's run loop.
type Registry struct {
	conns map[uuid.UUID]uuid.UUID // userID → connID
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]uuid.UUID)}
}

// Register maps userID to connID, overwriting any previous mapping.
func (r *Registry) Register(userID, connID uuid.UUID) {
	r.conns[userID] = connID
}

// Unregister removes the mapping if present; no-op otherwise.
func (r *Registry) Unregister(userID uuid.UUID) {
	delete(r.conns, userID)
}

// Lookup returns the connection currently owned by userID.
func (r *Registry) Lookup(userID uuid.UUID) (uuid.UUID, bool) {
	connID, ok := r.conns[userID]
	return connID, ok
}

func (r *Registry) Len() int {
	return len(r.conns)
}

// OnlineUserIDs returns the online users in a stable order.
func (r *Registry) OnlineUserIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
