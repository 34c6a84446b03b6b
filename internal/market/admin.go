package market

import "github.com/google/uuid"

// Admin gates the privileged operations: create, resolve, pause,
// liquidity, fee configuration, and surplus withdrawal.
type Admin struct {
	id uuid.UUID
}

func NewAdmin(id uuid.UUID) *Admin {
	return &Admin{id: id}
}

func (a *Admin) ID() uuid.UUID {
	return a.id
}

// Require returns ErrNotAdmin unless caller is the configured admin.
func (a *Admin) Require(caller uuid.UUID) error {
	if caller != a.id {
		return ErrNotAdmin
	}
	return nil
}
