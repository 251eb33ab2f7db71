// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"decred.org/kernelprov/aa"
	aakernel "decred.org/kernelprov/aa/networks/kernel"
)

const (
	// ErrConfiguration is a missing or invalid setting, detected before any
	// network call.
	ErrConfiguration = aa.ErrorKind("configuration error")
	// ErrConnectivity means the chain RPC or the bundler could not be reached
	// or they disagree about the chain.
	ErrConnectivity = aa.ErrorKind("connectivity error")
	// ErrDeployment means account creation failed, reverted or timed out. The
	// account remains undeployed.
	ErrDeployment = aa.ErrorKind("deployment error")
	// ErrIntegrity flags a mismatch between the locally derived and the
	// factory-predicted address. It is recorded and logged, never returned
	// from a run.
	ErrIntegrity = aa.ErrorKind("integrity anomaly")
	// ErrVerification means the account's entry point is not the configured
	// one.
	ErrVerification = aa.ErrorKind("verification error")
	// ErrDispatch is a failed operation submission.
	ErrDispatch = aa.ErrorKind("dispatch error")
	// ErrInvalidEncoding is a malformed derivation input.
	ErrInvalidEncoding = aakernel.ErrInvalidEncoding
)
