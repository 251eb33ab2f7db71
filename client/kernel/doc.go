// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package kernel provisions a counterfactual kernel smart account and
// dispatches an operation through it.
//
// A provisioning run proceeds through four stages, each starting only after
// the previous one completes:
//
//  1. Connectivity. The chain RPC and the bundler must answer and agree on the
//     chain ID.
//  2. Deployment. The factory's predicted address is deployed if it has no
//     code, cross-checked against local derivation, and its entry point is
//     verified.
//  3. Composition. An ECDSA validator and an account client bound to the
//     verified address are built.
//  4. Dispatch. The operation is sent as a user operation through the bundler,
//     falling back once to a raw user operation with static gas limits.
//
// Deployment and dispatch never retry state-mutating calls. Read-only calls
// are retried with exponential backoff.
package kernel
