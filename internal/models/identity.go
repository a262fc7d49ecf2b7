package models

import "strconv"

type IdentityKind int

const (
	IdentityNone IdentityKind = iota
	IdentityCustomer
	IdentityGuest
)

// Identity is either a registered customer or an anonymous session. Build it
// with CustomerIdentity or GuestIdentity; the zero value is neither.
type Identity struct {
	kind         IdentityKind
	customerID   int64
	sessionToken string
}

func CustomerIdentity(customerID int64) Identity {
	return Identity{kind: IdentityCustomer, customerID: customerID}
}

func GuestIdentity(sessionToken string) Identity {
	return Identity{kind: IdentityGuest, sessionToken: sessionToken}
}

func (i Identity) Kind() IdentityKind { return i.kind }

func (i Identity) IsCustomer() bool { return i.kind == IdentityCustomer && i.customerID > 0 }

func (i Identity) IsGuest() bool { return i.kind == IdentityGuest && i.sessionToken != "" }

func (i Identity) Valid() bool { return i.IsCustomer() || i.IsGuest() }

// CustomerID returns the customer id and whether the identity is a customer.
func (i Identity) CustomerID() (int64, bool) {
	return i.customerID, i.IsCustomer()
}

// SessionToken returns the session token and whether the identity is a guest.
func (i Identity) SessionToken() (string, bool) {
	return i.sessionToken, i.IsGuest()
}

// Columns renders the identity as the (customer_id, session_token) pair
// stored in SQL. Exactly one of the two is non-nil for a valid identity.
func (i Identity) Columns() (customerID *int64, sessionToken *string) {
	switch {
	case i.IsCustomer():
		id := i.customerID
		return &id, nil
	case i.IsGuest():
		token := i.sessionToken
		return nil, &token
	}
	return nil, nil
}

func (i Identity) String() string {
	switch {
	case i.IsCustomer():
		return "customer:" + strconv.FormatInt(i.customerID, 10)
	case i.IsGuest():
		return "guest"
	}
	return "none"
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Caller is the resolved identity of the party making a request.
type Caller struct {
	Identity Identity
	Role     Role
	// Email is only set for guests who supplied one to prove ownership.
	Email string
}

func (c Caller) IsAdmin() bool {
	return c.Identity.IsCustomer() && (c.Role == RoleStaff || c.Role == RoleAdmin)
}

// Owner describes who an order-scoped resource belongs to.
type Owner struct {
	CustomerID   *int64
	SessionToken string
	Email        string
}
