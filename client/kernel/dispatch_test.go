// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDispatchFallbackOrdering(t *testing.T) {
	txHash := common.HexToHash("0x01")
	opHash := common.HexToHash("0x02")
	tests := []struct {
		name      string
		sendErr   error
		rawErr    error
		wantCalls []string
		wantKind  OutcomeKind
		wantHash  common.Hash
	}{
		{
			name:      "primary succeeds",
			wantCalls: []string{"send"},
			wantKind:  OutcomeTransactionHash,
			wantHash:  txHash,
		},
		{
			name:      "fallback succeeds",
			sendErr:   errTest,
			wantCalls: []string{"send", "encode", "raw"},
			wantKind:  OutcomeUserOperationHash,
			wantHash:  opHash,
		},
		{
			name:      "both fail",
			sendErr:   errTest,
			rawErr:    errTestSecond,
			wantCalls: []string{"send", "encode", "raw"},
			wantKind:  OutcomeFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &tAccountClient{
				addr:    tPredicted,
				txHash:  txHash,
				sendErr: tt.sendErr,
				opHash:  opHash,
				rawErr:  tt.rawErr,
			}
			d := newDispatcher(tLogger)
			intent := &OperationIntent{Target: tPredicted, Value: new(big.Int), Data: []byte{}}
			out := d.dispatch(tCtx, client, intent)

			if !reflect.DeepEqual(client.calls, tt.wantCalls) {
				t.Fatalf("wanted calls %v, got %v", tt.wantCalls, client.calls)
			}
			if out.Kind != tt.wantKind {
				t.Fatalf("wanted outcome %s, got %s", tt.wantKind, out.Kind)
			}
			if out.Hash != tt.wantHash {
				t.Fatalf("wanted hash %s, got %s", tt.wantHash, out.Hash)
			}
			if len(client.raw) > 0 && !bytes.Equal(client.raw[0], client.encoded[0]) {
				t.Fatalf("fallback calldata %x differs from primary intent %x", client.raw[0], client.encoded[0])
			}

			err := out.Err()
			switch tt.wantKind {
			case OutcomeFailure:
				if !errors.Is(err, ErrDispatch) || !errors.Is(err, errTest) || !errors.Is(err, errTestSecond) {
					t.Fatalf("failure error should carry both causes, got %v", err)
				}
				if d.stage != DispatchFailed {
					t.Fatalf("wrong final stage %s", d.stage)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected outcome error %v", err)
				}
				if d.stage != DispatchDone {
					t.Fatalf("wrong final stage %s", d.stage)
				}
			}
			if tt.sendErr != nil && !errors.Is(out.PrimaryErr, tt.sendErr) {
				t.Fatalf("primary error not recorded: %v", out.PrimaryErr)
			}
		})
	}
}

func TestDispatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(tCtx)
	cancel()
	client := &tAccountClient{addr: tPredicted, sendErr: context.Canceled}
	out := newDispatcher(tLogger).dispatch(ctx, client, &OperationIntent{Target: tPredicted})
	if out.Kind != OutcomeFailure || !errors.Is(out.Err(), context.Canceled) {
		t.Fatalf("expected canceled failure, got %+v", out)
	}
	if !reflect.DeepEqual(client.calls, []string{"send"}) {
		t.Fatalf("fallback attempted after cancellation: %v", client.calls)
	}
}
