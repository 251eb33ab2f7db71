// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"decred.org/kernelprov/aa"
	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"decred.org/kernelprov/client/db"
	"github.com/ethereum/go-ethereum/common"
)

// RunJournal records provisioning runs.
type RunJournal interface {
	StoreRun(*db.RunRecord) error
}

// Loggers are the subsystem loggers of a Provisioner. Nil loggers are
// disabled.
type Loggers struct {
	Prov     aa.Logger
	Deploy   aa.Logger
	Dispatch aa.Logger
	Bundler  aa.Logger
}

func orDisabled(l aa.Logger) aa.Logger {
	if l == nil {
		return aa.Disabled
	}
	return l
}

// RunResult is what a provisioning run produced. Fields are nil for stages
// that were not reached.
type RunResult struct {
	Descriptor *aakernel.AccountDescriptor
	Deployment *DeploymentResult
	Outcome    *DispatchOutcome
}

// Provisioner runs the connectivity, deployment, composition and dispatch
// stages in order.
type Provisioner struct {
	cfg     *Config
	signer  Signer
	chain   chainClient
	bundler bundler
	journal RunJournal
	retry   *retrier

	log     aa.Logger
	dplyLog aa.Logger
	dispLog aa.Logger
	bndlLog aa.Logger
}

// NewProvisioner validates the configuration and connects to the chain RPC
// and the bundler. journal may be nil.
func NewProvisioner(ctx context.Context, cfg *Config, signer Signer, logs *Loggers, journal RunJournal) (*Provisioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, aa.NewError(ErrConfiguration, "no signer")
	}
	chain, err := newRPCClient(ctx, cfg.RPCURL, signer)
	if err != nil {
		return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("chain RPC %s: %v", cfg.RPCURL, err))
	}
	b, err := newBundler(ctx, cfg.BundlerURL, cfg.entryPoint())
	if err != nil {
		chain.shutdown()
		return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("bundler %s: %v", cfg.BundlerURL, err))
	}
	return newProvisioner(cfg, signer, chain, b, logs, journal), nil
}

func newProvisioner(cfg *Config, signer Signer, chain chainClient, b bundler, logs *Loggers, journal RunJournal) *Provisioner {
	if logs == nil {
		logs = &Loggers{}
	}
	log := orDisabled(logs.Prov)
	return &Provisioner{
		cfg:     cfg,
		signer:  signer,
		chain:   chain,
		bundler: b,
		journal: journal,
		retry:   newRetrier(cfg, log),
		log:     log,
		dplyLog: orDisabled(logs.Deploy),
		dispLog: orDisabled(logs.Dispatch),
		bndlLog: orDisabled(logs.Bundler),
	}
}

// Close disconnects from the chain RPC and the bundler.
func (p *Provisioner) Close() {
	p.chain.shutdown()
	p.bundler.shutdown()
}

// Run provisions the account and dispatches a zero-value call from the account
// to itself. The result is returned along with any error. A run that
// deployed and verified the account but failed to dispatch returns an error
// matching ErrDispatch.
func (p *Provisioner) Run(ctx context.Context) (res *RunResult, err error) {
	res = new(RunResult)
	rec := &db.RunRecord{
		StartTime: time.Now(),
		Network:   p.cfg.Network.String(),
		Owner:     p.signer.Address().Hex(),
		Salt:      p.cfg.salt().String(),
	}
	defer func() {
		p.record(rec, res, err)
	}()

	p.log.Infof("🚀 Provisioning kernel account for owner %s on %s", p.signer.Address(), p.cfg.Network)

	chainID, err := p.probe(ctx)
	if err != nil {
		return res, err
	}

	d, err := p.descriptor(ctx)
	if err != nil {
		return res, err
	}
	res.Descriptor = d

	res.Deployment, err = newOrchestrator(p.cfg, p.chain, p.retry, p.dplyLog).run(ctx, d)
	if err != nil {
		return res, err
	}
	acct := res.Deployment.Address

	client, err := composeAccount(ctx, p.cfg, p.chain, p.bundler, p.signer, d, acct, chainID, p.retry, p.dispLog)
	if err != nil {
		return res, err
	}

	p.logSummary(acct)

	res.Outcome = newDispatcher(p.dispLog).dispatch(ctx, client, &OperationIntent{
		Target: acct,
		Value:  new(big.Int),
		Data:   []byte{},
	})
	if err := res.Outcome.Err(); err != nil {
		return res, err
	}
	p.log.Infof("🎉 Smart account integration complete!")
	return res, nil
}

// probe checks that the chain RPC and the bundler respond and agree on the
// chain ID. It returns the chain ID.
func (p *Provisioner) probe(ctx context.Context) (*big.Int, error) {
	var height uint64
	err := p.retry.read(ctx, "block number", func(ctx context.Context) error {
		var err error
		height, err = p.chain.blockNumber(ctx)
		return err
	})
	if err != nil {
		return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("failed to connect to chain RPC %s: %v", p.cfg.RPCURL, err))
	}
	p.log.Infof("✅ Connected to chain. Current block: %d", height)

	var chainID *big.Int
	err = p.retry.read(ctx, "chain ID", func(ctx context.Context) error {
		var err error
		chainID, err = p.chain.chainID(ctx)
		return err
	})
	if err != nil {
		return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("failed to get chain ID from %s: %v", p.cfg.RPCURL, err))
	}
	if p.cfg.ChainID != 0 && chainID.Cmp(big.NewInt(p.cfg.ChainID)) != 0 {
		return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("chain RPC is on chain %s, expected %d", chainID, p.cfg.ChainID))
	}

	p.bndlLog.Infof("🔧 Testing bundler connectivity...")
	var bundlerChainID *big.Int
	err = p.retry.read(ctx, "bundler chain ID", func(ctx context.Context) error {
		var err error
		bundlerChainID, err = p.bundler.chainID(ctx)
		return err
	})
	if err != nil {
		return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("failed to connect to bundler at %s: %v", p.cfg.BundlerURL, err))
	}
	if bundlerChainID.Cmp(chainID) != 0 {
		return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("bundler is on chain %s, chain RPC is on chain %s", bundlerChainID, chainID))
	}
	p.bndlLog.Infof("✅ Bundler connected. Chain ID: %s", bundlerChainID)

	var entryPoints map[common.Address]bool
	err = p.retry.read(ctx, "supported entry points", func(ctx context.Context) error {
		var err error
		entryPoints, err = p.bundler.supportedEntryPoints(ctx)
		return err
	})
	switch {
	case err != nil:
		p.bndlLog.Warnf("⚠️ Could not get bundler's supported entry points: %v", err)
	case !entryPoints[p.cfg.entryPoint()]:
		supported := make([]string, 0, len(entryPoints))
		for ep := range entryPoints {
			supported = append(supported, ep.Hex())
		}
		p.bndlLog.Warnf("⚠️ Entry point %s not listed by bundler; supported entry points: %v", p.cfg.entryPoint(), supported)
	}
	return chainID, nil
}

// descriptor builds the account descriptor, reading the implementation from
// the factory if it is not configured.
func (p *Provisioner) descriptor(ctx context.Context) (*aakernel.AccountDescriptor, error) {
	impl := p.cfg.Contracts.Kernel
	if impl == (common.Address{}) {
		err := p.retry.read(ctx, "factory implementation", func(ctx context.Context) error {
			var err error
			impl, err = p.chain.factoryImplementation(ctx, p.cfg.Contracts.Factory)
			return err
		})
		if err != nil {
			return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("error reading implementation from factory %s: %v", p.cfg.Contracts.Factory, err))
		}
		p.log.Infof("Using kernel implementation %s from factory", impl)
	}
	return aakernel.NewAccountDescriptor(p.signer.Address(), p.cfg.salt(), impl, p.cfg.Contracts.Factory, p.cfg.InitData)
}

func (p *Provisioner) logSummary(acct common.Address) {
	c := &p.cfg.Contracts
	p.log.Infof("📋 Contract addresses used:\n"+
		"  - EntryPoint: %s\n"+
		"  - ECDSAValidator: %s\n"+
		"  - Kernel: %s\n"+
		"  - KernelFactory: %s\n"+
		"  - FactoryStaker: %s",
		c.EntryPoint, c.ECDSAValidator, c.Kernel, c.Factory, c.FactoryStaker)
	p.log.Infof("📝 Account address: %s", acct)
	p.log.Infof("🔑 Owner address: %s", p.signer.Address())
	p.log.Infof("📡 Using bundler at: %s", p.cfg.BundlerURL)
}

// record stores the run in the journal. Journal errors are logged only.
func (p *Provisioner) record(rec *db.RunRecord, res *RunResult, err error) {
	if p.journal == nil {
		return
	}
	rec.EndTime = time.Now()
	if dep := res.Deployment; dep != nil && dep.Address != (common.Address{}) {
		rec.Account = dep.Address.Hex()
		rec.Deployed = dep.Deployed
		rec.DerivedMismatch = dep.DerivedMismatch
		if dep.Deployed {
			rec.DeployTx = dep.DeployTx.Hex()
		}
	}
	if out := res.Outcome; out != nil {
		rec.Outcome = out.Kind.String()
		if out.Kind != OutcomeFailure {
			rec.OutcomeHash = out.Hash.Hex()
		}
	}
	if err != nil {
		rec.Err = err.Error()
	}
	if err := p.journal.StoreRun(rec); err != nil {
		p.log.Errorf("Error recording run in journal: %v", err)
	}
}
