package registration

// Registration binds the hash of one external alias to one local
// account. The alias hash is unique across all registrations; an
// account may own any number of them.
type Registration struct {
	ID            int64   `json:"id"`
	AccountID     int64   `json:"account_id"`
	ObscuredAlias *string `json:"obscured_alias,omitempty"`
	AliasHash     string  `json:"alias_hash"`
}

// RegistrationInfo is the admin-facing view of a registration, with
// the owning account's login name resolved.
type RegistrationInfo struct {
	ID   int64  `json:"id"`
	User string `json:"user"`
	Hint string `json:"hint,omitempty"`
	Hash string `json:"hash"`
}

// ImportRecord is one entry of a bulk registration import.
type ImportRecord struct {
	Alias string `json:"alias"`
	Login string `json:"login"`
}

// ImportResult summarizes a bulk import: per-record failures are
// collected up to a bound, incomplete records are skipped.
type ImportResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Errors    []ImportError `json:"errors,omitempty"`
}

// ImportError describes one failed import record.
type ImportError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// ListSearch narrows a registration listing.
type ListSearch struct {
	// Login restricts to registrations of the account with this login
	// name or email address.
	Login string
	// Alias restricts to registrations whose obscured alias contains
	// this substring.
	Alias string
}
