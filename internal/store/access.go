package store

import (
	"fmt"
	"strings"

	"github.com/safar/electronics-store/internal/models"
)

// CanAccess reports whether caller may read or act on a resource owned by owner.
func CanAccess(caller models.Caller, owner models.Owner) bool {
	if caller.IsAdmin() {
		return true
	}

	if customerID, ok := caller.Identity.CustomerID(); ok {
		return owner.CustomerID != nil && *owner.CustomerID == customerID
	}

	token, ok := caller.Identity.SessionToken()
	if !ok || owner.CustomerID != nil {
		return false
	}
	if owner.SessionToken != "" && owner.SessionToken == token {
		return true
	}
	return caller.Email != "" && owner.Email != "" && strings.EqualFold(owner.Email, caller.Email)
}

// ownerFilter renders CanAccess as a WHERE fragment over the orders table
// aliased as alias. Placeholders start at $next.
func ownerFilter(caller models.Caller, alias string, next int) (string, []any) {
	if caller.IsAdmin() {
		return "TRUE", nil
	}

	if customerID, ok := caller.Identity.CustomerID(); ok {
		return fmt.Sprintf("%s.customer_id = $%d", alias, next), []any{customerID}
	}

	token, ok := caller.Identity.SessionToken()
	if !ok {
		return "FALSE", nil
	}

	if caller.Email == "" {
		return fmt.Sprintf("(%s.customer_id IS NULL AND %s.session_token = $%d)", alias, alias, next),
			[]any{token}
	}

	return fmt.Sprintf("(%s.customer_id IS NULL AND (%s.session_token = $%d OR lower(%s.customer_email) = lower($%d)))",
			alias, alias, next, alias, next+1),
		[]any{token, caller.Email}
}
