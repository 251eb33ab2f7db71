// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"

	"decred.org/kernelprov/aa"
)

// dispatcher submits intents through an AccountClient, trying the raw user
// operation path exactly once if the primary path fails.
type dispatcher struct {
	log   aa.Logger
	stage DispatchStage
}

func newDispatcher(log aa.Logger) *dispatcher {
	return &dispatcher{log: log}
}

func (d *dispatcher) transition(to DispatchStage) {
	if !canTransition(dispatchTransitions, d.stage, to) {
		d.log.Errorf("Unexpected dispatch stage transition %s -> %s", d.stage, to)
	} else {
		d.log.Debugf("Dispatch stage %s -> %s", d.stage, to)
	}
	d.stage = to
}

// dispatch never returns nil. Check the outcome's Err.
func (d *dispatcher) dispatch(ctx context.Context, client AccountClient, intents ...*OperationIntent) *DispatchOutcome {
	d.stage = DispatchIdle
	d.transition(DispatchPrimary)
	d.log.Infof("🚀 Sending user operation from %s", client.Address())

	txHash, err := client.SendTransaction(ctx, intents...)
	if err == nil {
		d.transition(DispatchDone)
		d.log.Infof("✅ User operation completed successfully! Transaction hash: %s", txHash)
		return &DispatchOutcome{Kind: OutcomeTransactionHash, Hash: txHash}
	}
	out := &DispatchOutcome{PrimaryErr: err}
	d.log.Errorf("❌ User operation failed: %v", err)

	if ctx.Err() != nil {
		d.transition(DispatchFallback)
		out.FallbackErr = ctx.Err()
		d.transition(DispatchFailed)
		return out
	}

	d.transition(DispatchFallback)
	d.log.Infof("🔄 Trying raw user operation approach...")
	callData, err := client.EncodeIntent(intents...)
	if err != nil {
		out.FallbackErr = err
		d.transition(DispatchFailed)
		d.log.Errorf("❌ Raw user operation could not be encoded: %v", err)
		return out
	}
	opHash, err := client.SendRawOperation(ctx, callData)
	if err != nil {
		out.FallbackErr = err
		d.transition(DispatchFailed)
		d.log.Errorf("❌ Raw user operation also failed: %v", err)
		return out
	}
	d.transition(DispatchDone)
	d.log.Infof("✅ Raw user operation sent successfully! User operation hash: %s", opHash)
	out.Kind = OutcomeUserOperationHash
	out.Hash = opHash
	return out
}
