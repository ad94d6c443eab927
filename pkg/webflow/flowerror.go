package webflow

import (
	"encoding/json"
	"net/http"
)

// FlowErrorKey is the unscoped attribute name under which a webflow
// error is stashed for the login surface to pick up.
const FlowErrorKey = "flow-error"

// SetFlowError stashes an (error code, error text) pair in the webflow
// session so the login page can display it after a redirect.
func SetFlowError(store Store, w http.ResponseWriter, r *http.Request, scope Scope, code, text string) error {
	payload, err := json.Marshal([2]string{code, text})
	if err != nil {
		return err
	}
	return store.Set(w, r, scope.Key(FlowErrorKey), string(payload))
}

// TakeFlowError returns the stashed flow error, clearing it. Both
// return values are empty when no error is pending.
func TakeFlowError(store Store, w http.ResponseWriter, r *http.Request, scope Scope) (code, text string) {
	key := scope.Key(FlowErrorKey)
	raw, ok := store.Get(r, key)
	if !ok {
		return "", ""
	}
	_ = store.Delete(w, r, key)

	var pair [2]string
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return "", ""
	}
	return pair[0], pair[1]
}
