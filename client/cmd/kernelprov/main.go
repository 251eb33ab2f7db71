// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

/*
	kernelprov provisions a Kernel smart account for the owner key in
	PRIVATE_KEY, deploying it through the factory if needed, and sends a
	zero-value user operation from the account to itself.

	1) Provision on the default testnet deployment.
		PRIVATE_KEY=0x... ./kernelprov

	2) Provision the account with salt 1 on a local chain, recording the run.
		./kernelprov --net simnet --salt 1 --journal ~/kernelprov.db

	3) Show the last 5 recorded runs.
		./kernelprov --journal ~/kernelprov.db --history 5
*/

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"decred.org/kernelprov/aa"
	"decred.org/kernelprov/client/db"
	"decred.org/kernelprov/client/kernel"
	"github.com/joho/godotenv"
)

const privateKeyEnv = "PRIVATE_KEY"

var version = aa.NewSemver(0, 1, 0)

func main() {
	if err := mainErr(); err != nil {
		fmt.Fprint(os.Stderr, err, "\n")
		os.Exit(1)
	}
	os.Exit(0)
}

func mainErr() error {
	cfg, stop, err := configure()
	if err != nil {
		return fmt.Errorf("unable to configure: %w", err)
	}
	if stop {
		return nil
	}

	if !cfg.NoFileLogging {
		if err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename), cfg.MaxLogRolls); err != nil {
			return err
		}
		defer closeLogRotator()
	}
	if err := initLoggers(cfg.DebugLevel); err != nil {
		return fmt.Errorf("unable to configure logging: %w", err)
	}

	if cfg.History > 0 {
		return printHistory(cfg.Journal, cfg.History)
	}

	kcfg, err := kernelConfig(cfg)
	if err != nil {
		return err
	}

	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", cfg.EnvFile, err)
	}
	privKey := os.Getenv(privateKeyEnv)
	if privKey == "" {
		return aa.NewError(kernel.ErrConfiguration, privateKeyEnv+" environment variable is required")
	}
	signer, err := kernel.NewKeySigner(privKey)
	if err != nil {
		return err
	}
	log.Infof("✅ Signer created: %s", signer.Address())

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var journal kernel.RunJournal
	if cfg.Journal != "" {
		j, err := db.NewJournal(cfg.Journal, subsystemLoggers["JRNL"])
		if err != nil {
			return err
		}
		defer j.Close()
		journal = j
	}

	prov, err := kernel.NewProvisioner(ctx, kcfg, signer, &kernel.Loggers{
		Prov:     subsystemLoggers["PROV"],
		Deploy:   subsystemLoggers["DPLY"],
		Dispatch: subsystemLoggers["DISP"],
		Bundler:  subsystemLoggers["BNDL"],
	}, journal)
	if err != nil {
		return err
	}
	defer prov.Close()

	res, err := prov.Run(ctx)
	printResult(res)
	return err
}

func printResult(res *kernel.RunResult) {
	if res == nil || res.Deployment == nil {
		return
	}
	dep := res.Deployment
	fmt.Printf("account:  %s (%s)\n", dep.Address, dep.Stage)
	if dep.Deployed {
		fmt.Printf("deployed: tx %s, block %d, gas used %d\n", dep.DeployTx, dep.Block, dep.GasUsed)
	}
	if dep.DerivedMismatch {
		fmt.Printf("derived:  %s (does not match factory)\n", dep.Derived)
	}
	if out := res.Outcome; out != nil && out.Kind != kernel.OutcomeFailure {
		fmt.Printf("%s hash: %s\n", out.Kind, out.Hash)
	}
}

func printHistory(path string, n int) error {
	if path == "" {
		return fmt.Errorf("--history requires --journal")
	}
	if !fileExists(path) {
		return fmt.Errorf("journal %s not found", path)
	}
	j, err := db.NewJournal(path, subsystemLoggers["JRNL"])
	if err != nil {
		return err
	}
	defer j.Close()
	runs, err := j.Runs(n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		status := "ok"
		if r.Err != "" {
			status = r.Err
		}
		fmt.Printf("%s %s owner %s salt %s account %s deployed=%t outcome=%s %s: %s\n",
			r.StartTime.Format("2006-01-02 15:04:05"), r.Network, r.Owner, r.Salt,
			r.Account, r.Deployed, r.Outcome, r.OutcomeHash, status)
	}
	return nil
}
