package xlogin

import "github.com/tendant/xlogin/pkg/account"

// GuestForbiddenCapabilities disqualify an account from serving as the
// guest fallback. Guest login must never hand out content-editing or
// administrative power.
var GuestForbiddenCapabilities = []string{
	"edit_posts",
	"delete_posts",
	"publish_posts",
	"edit_pages",
	"manage_options",
}

// GuestDisabledCapabilities are forced off on a guest account at
// session-import time, on top of the acceptability check.
var GuestDisabledCapabilities = []string{
	"read",
	"edit_user",
}

// IsAcceptableGuest reports whether an account may serve as the guest
// fallback. The reason names the offending capability when not.
func IsAcceptableGuest(acct *account.Account) (bool, string) {
	if acct == nil {
		return false, "no account"
	}
	for _, cap := range GuestForbiddenCapabilities {
		if acct.HasCapability(cap) {
			return false, "guest account holds capability " + cap
		}
	}
	return true, ""
}
