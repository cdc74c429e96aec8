package domain

// Role is a staff role within a tenant.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleChef    Role = "CHEF"
	RoleWaiter  Role = "WAITER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleChef, RoleWaiter:
		return true
	}
	return false
}

// KitchenRoles may join the tenant kitchen room.
func (r Role) Kitchen() bool {
	switch r {
	case RoleChef, RoleManager, RoleAdmin:
		return true
	}
	return false
}

type IdentityKind string

const (
	IdentityStaff    IdentityKind = "staff"
	IdentityCustomer IdentityKind = "customer"
)

// Identity is the immutable result of authenticating a connection.
// Re-authentication requires a new connection.
type Identity struct {
	Kind      IdentityKind `json:"kind"`
	TenantID  string       `json:"tenantId"`
	SessionID string       `json:"sessionId"`

	// Staff only
	StaffID string `json:"staffId,omitempty"`
	Role    Role   `json:"role,omitempty"`

	// Customer only
	TableID string `json:"tableId,omitempty"`
}

func NewStaffIdentity(tenantID, staffID string, role Role, sessionID string) Identity {
	return Identity{
		Kind:      IdentityStaff,
		TenantID:  tenantID,
		StaffID:   staffID,
		Role:      role,
		SessionID: sessionID,
	}
}

func NewCustomerIdentity(tenantID, tableID, sessionID string) Identity {
	return Identity{
		Kind:      IdentityCustomer,
		TenantID:  tenantID,
		TableID:   tableID,
		SessionID: sessionID,
	}
}

func (id Identity) IsStaff() bool {
	return id.Kind == IdentityStaff
}
