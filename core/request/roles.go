package request

// Roles maps NYM role names to their ledger codes.
type Roles map[string]string

// Role codes known to the ledger. Only STEWARD is relied upon by callers today;
// the table can be replaced through configuration.
const (
	TRUSTEE         = "0"
	STEWARD         = "2"
	TRUST_ANCHOR    = "101"
	NETWORK_MONITOR = "201"
)

// DefaultRoles returns the built-in role table.
func DefaultRoles() Roles {
	return Roles{
		"TRUSTEE":         TRUSTEE,
		"STEWARD":         STEWARD,
		"TRUST_ANCHOR":    TRUST_ANCHOR,
		"NETWORK_MONITOR": NETWORK_MONITOR,
	}
}

// Code returns the ledger code of the named role.
func (r Roles) Code(name string) (string, bool) {
	code, ok := r[name]
	return code, ok
}

// Name returns the role name for a ledger code.
func (r Roles) Name(code string) (string, bool) {
	for name, c := range r {
		if c == code {
			return name, true
		}
	}
	return "", false
}
