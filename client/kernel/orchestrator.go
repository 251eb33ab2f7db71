// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"
	"fmt"

	"decred.org/kernelprov/aa"
	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// orchestrator deploys the account if needed and verifies it. It holds no
// deployment cache: every run reads the chain.
type orchestrator struct {
	cfg   *Config
	chain chainClient
	retry *retrier
	log   aa.Logger
	stage DeploymentStage
}

func newOrchestrator(cfg *Config, chain chainClient, r *retrier, log aa.Logger) *orchestrator {
	return &orchestrator{
		cfg:   cfg,
		chain: chain,
		retry: r,
		log:   log,
	}
}

func (o *orchestrator) transition(to DeploymentStage) {
	if !canTransition(deploymentTransitions, o.stage, to) {
		o.log.Errorf("Unexpected deployment stage transition %s -> %s", o.stage, to)
	} else {
		o.log.Debugf("Deployment stage %s -> %s", o.stage, to)
	}
	o.stage = to
}

// abort moves to StageAborted and returns an error wrapping kind. A cause
// formatted with %w stays reachable through errors.Is and errors.As.
func (o *orchestrator) abort(kind aa.ErrorKind, format string, args ...any) error {
	o.transition(StageAborted)
	return fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)
}

func (o *orchestrator) code(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	err := o.retry.read(ctx, "account code", func(ctx context.Context) error {
		var err error
		code, err = o.chain.codeAt(ctx, addr)
		return err
	})
	return code, err
}

// run takes the account described by d to StageVerified. On error, the
// returned result is still populated up to the failed stage.
func (o *orchestrator) run(ctx context.Context, d *aakernel.AccountDescriptor) (*DeploymentResult, error) {
	o.stage = StageStart
	res := &DeploymentResult{}
	defer func() { res.Stage = o.stage }()

	var predicted common.Address
	err := o.retry.read(ctx, "predicted address", func(ctx context.Context) error {
		var err error
		predicted, err = o.chain.predictedAddress(ctx, d.Factory(), d.InitData(), d.SaltBytes())
		return err
	})
	if err != nil {
		return res, o.abort(ErrDeployment, "error getting predicted address from factory %s: %w", d.Factory(), err)
	}
	res.Address = predicted
	o.transition(StagePredicted)
	o.log.Infof("📍 Predicted account address: %s", predicted)

	code, err := o.code(ctx, predicted)
	if err != nil {
		return res, o.abort(ErrDeployment, "error checking code at %s: %w", predicted, err)
	}
	o.log.Debugf("Account %s has code: %t", predicted, len(code) > 0)

	if stateFromCode(code) == Deployed {
		o.log.Infof("✅ Account already exists at predicted address")
		o.transition(StageDeployed)
	} else {
		o.transition(StageDeploying)
		if code, err = o.deploy(ctx, d, res); err != nil {
			return res, err
		}
		o.transition(StageDeployed)
	}
	res.State = Deployed
	res.CodeSize = len(code)

	derived, err := aakernel.DeriveAccountAddress(d)
	if err != nil {
		// Local derivation is advisory.
		o.log.Warnf("⚠️ %v", aa.NewError(ErrIntegrity, fmt.Sprintf("local derivation failed: %v", err)))
	} else {
		res.Derived = derived
		if derived != predicted {
			res.DerivedMismatch = true
			o.log.Warnf("⚠️ %v", aa.NewError(ErrIntegrity,
				fmt.Sprintf("locally derived address %s does not match factory address %s", derived, predicted)))
		} else {
			o.log.Infof("✅ Local derivation matches factory address")
		}
	}

	o.log.Infof("📏 Code size: %d bytes", res.CodeSize)

	var entryPoint common.Address
	err = o.retry.read(ctx, "account entry point", func(ctx context.Context) error {
		var err error
		entryPoint, err = o.chain.accountEntryPoint(ctx, predicted)
		return err
	})
	if err != nil {
		return res, o.abort(ErrVerification, "error reading entry point of account %s: %w", predicted, err)
	}
	res.EntryPoint = entryPoint
	if entryPoint != o.cfg.entryPoint() {
		return res, o.abort(ErrVerification, "account %s entry point is %s, expected %s", predicted, entryPoint, o.cfg.entryPoint())
	}
	o.log.Infof("✅ Account entry point matches %s", entryPoint)
	o.transition(StageVerified)
	return res, nil
}

// deploy sends createAccount once, waits for it to be mined, and returns the
// code now at the predicted address.
func (o *orchestrator) deploy(ctx context.Context, d *aakernel.AccountDescriptor, res *DeploymentResult) ([]byte, error) {
	o.log.Infof("📦 Creating new account...")
	fees, err := resolveFees(ctx, o.cfg, o.chain, o.retry)
	if err != nil {
		return nil, o.abort(ErrDeployment, "error getting gas price: %w", err)
	}
	if o.cfg.MaxFeePerGas == nil {
		// Suggested price as a legacy gas price.
		fees.maxPriority = nil
	}

	var tx *types.Transaction
	err = o.retry.once(ctx, func(ctx context.Context) error {
		var err error
		tx, err = o.chain.createAccount(ctx, d.Factory(), d.InitData(), d.SaltBytes(), o.cfg.DeploymentGas, fees)
		return err
	})
	if err != nil {
		return nil, o.abort(ErrDeployment, "createAccount error: %w", err)
	}
	res.Deployed = true
	res.DeployTx = tx.Hash()
	o.log.Infof("📝 Account creation transaction hash: %s", tx.Hash())

	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.InclusionTimeout)
	defer cancel()
	receipt, err := waitMined(waitCtx, o.chain, o.retry, tx.Hash(), o.cfg.ReceiptPollInterval, o.log)
	if err != nil {
		return nil, o.abort(ErrDeployment, "createAccount transaction %s not mined: %w", tx.Hash(), err)
	}
	res.GasUsed = receipt.GasUsed
	if receipt.BlockNumber != nil {
		res.Block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, o.abort(ErrDeployment, "createAccount transaction %s reverted in block %d", tx.Hash(), res.Block)
	}
	o.log.Infof("✅ Account created successfully! Gas used: %d, block number: %d", res.GasUsed, res.Block)

	code, err := o.code(ctx, res.Address)
	if err != nil {
		return nil, o.abort(ErrDeployment, "error checking code at %s after deployment: %w", res.Address, err)
	}
	if len(code) == 0 {
		return nil, o.abort(ErrDeployment, "no code at %s after createAccount transaction %s", res.Address, tx.Hash())
	}
	return code, nil
}
