package inboundauth

import "net/http"

// NoneValidator accepts every request unauthenticated, per spec.md §4.10's
// `none` variant. It is used for an explicit `inboundAuth.type: none`
// config or for Bootstrap's DISABLE_INBOUND_AUTH override — never as the
// zero-configuration default.
type NoneValidator struct{}

// NewNoneValidator creates a NoneValidator.
func NewNoneValidator() *NoneValidator { return &NoneValidator{} }

// Authenticate implements Validator: always succeeds.
func (*NoneValidator) Authenticate(http.ResponseWriter, *http.Request) error { return nil }
