package classify

import "errors"

var (
	// ErrValidation means the classifier returned a malformed or out-of-range
	// response. The transaction stays pending; nothing is persisted.
	ErrValidation = errors.New("invalid classifier response")

	// ErrAuthorization means the scoped classification update matched zero
	// rows: the transaction does not belong to the account it claims. Not a
	// transient failure, so it is not retried.
	ErrAuthorization = errors.New("transaction not owned by account")
)
