// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"errors"

	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"github.com/ethereum/go-ethereum/common"
)

// OperationIntent is a call the account should make.
type OperationIntent = aakernel.Call

// DeploymentState is whether code exists at the account address. It is read
// from the chain every time it is needed.
type DeploymentState uint8

const (
	Undeployed DeploymentState = iota
	Deployed
)

func (s DeploymentState) String() string {
	if s == Deployed {
		return "deployed"
	}
	return "undeployed"
}

func stateFromCode(code []byte) DeploymentState {
	if len(code) > 0 {
		return Deployed
	}
	return Undeployed
}

// DeploymentStage is a state of the deployment orchestrator.
type DeploymentStage uint8

const (
	StageStart DeploymentStage = iota
	StagePredicted
	StageDeploying
	StageDeployed
	StageVerified
	StageAborted
)

func (s DeploymentStage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StagePredicted:
		return "predicted"
	case StageDeploying:
		return "deploying"
	case StageDeployed:
		return "deployed"
	case StageVerified:
		return "verified"
	case StageAborted:
		return "aborted"
	}
	return "unknown"
}

// deploymentTransitions are the allowed orchestrator transitions.
var deploymentTransitions = map[DeploymentStage][]DeploymentStage{
	StageStart:     {StagePredicted, StageAborted},
	StagePredicted: {StageDeployed, StageDeploying, StageAborted},
	StageDeploying: {StageDeployed, StageAborted},
	StageDeployed:  {StageVerified, StageAborted},
}

// DispatchStage is a state of the operation dispatcher.
type DispatchStage uint8

const (
	DispatchIdle DispatchStage = iota
	DispatchPrimary
	DispatchFallback
	DispatchDone
	DispatchFailed
)

func (s DispatchStage) String() string {
	switch s {
	case DispatchIdle:
		return "idle"
	case DispatchPrimary:
		return "primary"
	case DispatchFallback:
		return "fallback"
	case DispatchDone:
		return "done"
	case DispatchFailed:
		return "failed"
	}
	return "unknown"
}

var dispatchTransitions = map[DispatchStage][]DispatchStage{
	DispatchIdle:     {DispatchPrimary},
	DispatchPrimary:  {DispatchDone, DispatchFallback},
	DispatchFallback: {DispatchDone, DispatchFailed},
}

func canTransition[S comparable](transitions map[S][]S, from, to S) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DeploymentResult describes the account after the orchestrator has run.
type DeploymentResult struct {
	Address common.Address
	Stage   DeploymentStage
	State   DeploymentState
	// Deployed is true if this run sent the createAccount transaction.
	Deployed bool
	DeployTx common.Hash
	GasUsed  uint64
	Block    uint64
	CodeSize int
	// Derived is the locally derived address. DerivedMismatch is set when it
	// differs from Address.
	Derived         common.Address
	DerivedMismatch bool
	EntryPoint      common.Address
}

// OutcomeKind is the kind of hash a dispatch produced, if any.
type OutcomeKind uint8

const (
	OutcomeFailure OutcomeKind = iota
	OutcomeTransactionHash
	OutcomeUserOperationHash
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTransactionHash:
		return "transaction"
	case OutcomeUserOperationHash:
		return "user operation"
	}
	return "failure"
}

// DispatchOutcome is the result of dispatching an operation. Hash is a
// transaction hash for the primary path and a user operation hash for the
// fallback path. PrimaryErr is set whenever the fallback was attempted.
type DispatchOutcome struct {
	Kind        OutcomeKind
	Hash        common.Hash
	PrimaryErr  error
	FallbackErr error
}

// Err is nil unless both paths failed, in which case it matches ErrDispatch
// and both causes with errors.Is.
func (o *DispatchOutcome) Err() error {
	if o.Kind != OutcomeFailure {
		return nil
	}
	return errors.Join(ErrDispatch, o.PrimaryErr, o.FallbackErr)
}
