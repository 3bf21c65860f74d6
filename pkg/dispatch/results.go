package dispatch

// FailureKind classifies a per-token delivery failure.
type FailureKind string

const (
	// FailureNone means the token was delivered to.
	FailureNone FailureKind = ""
	// FailureInvalidToken means the token is malformed or was never valid.
	FailureInvalidToken FailureKind = "invalid-token"
	// FailureNotRegistered means the token was valid but is no longer registered.
	FailureNotRegistered FailureKind = "token-not-registered"
	// FailureOther covers quota, availability and configuration errors.
	FailureOther FailureKind = "other"
)

// DeliveryResult is the outcome of sending to one token.
type DeliveryResult struct {
	Token   string
	Failure FailureKind
	Err     error
}

// Ok reports whether the send succeeded.
func (r DeliveryResult) Ok() bool {
	return r.Failure == FailureNone
}

// Stale reports whether the failure proves the token should be removed.
func (r DeliveryResult) Stale() bool {
	return r.Failure == FailureInvalidToken || r.Failure == FailureNotRegistered
}
