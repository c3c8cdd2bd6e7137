package userstore

import "fmt"

type (
	UserNotFound struct {
		Key string
	}

	Conflict struct {
		Key string
	}

	// Unavailable is returned whenever the underlying database fails.
	// Callers must surface it, there is no retry at this layer.
	Unavailable struct {
		Op    string
		cause error
	}
)

func (u UserNotFound) Error() string {
	return fmt.Sprintf("user %v not found", u.Key)
}

func (c Conflict) Error() string {
	return fmt.Sprintf("federated id %v already bound to another user", c.Key)
}

func (u Unavailable) Error() string {
	return fmt.Sprintf("user store unavailable during %v, cause %v", u.Op, u.cause)
}

func (u Unavailable) Unwrap() error {
	return u.cause
}

func unavailable(op string, cause error) error {
	return Unavailable{Op: op, cause: cause}
}
