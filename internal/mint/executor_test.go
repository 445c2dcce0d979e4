package mint

import (
	"context"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"MintRelay/internal/chain"
	"MintRelay/internal/wallet"
)

type fakeInvoker struct {
	calls int
	tx    *wallet.PendingTransaction
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, _, _ string, _ map[string]string, _ string) (*wallet.PendingTransaction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

type receiptStep struct {
	receipt *chain.Receipt
	err     error
}

type fakeReader struct {
	steps    []receiptStep
	calls    int
	tokenURI string
}

func (f *fakeReader) BalanceAt(context.Context, string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeReader) TransactionReceipt(context.Context, string) (*chain.Receipt, error) {
	step := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	f.calls++
	return step.receipt, step.err
}

func (f *fakeReader) TokenURI(context.Context, string, *big.Int) (string, error) {
	return f.tokenURI, nil
}

func (f *fakeReader) Close() {}

func metadataURI(t *testing.T, body string) string {
	t.Helper()
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(body))
}

func newTestExecutor(t *testing.T, invoker *fakeInvoker, reader *fakeReader, attempts int) *Executor {
	t.Helper()
	executor, err := NewExecutor(invoker, reader, NewMetadataFetcher(time.Second), "0x4B9523186371F5a805d2EF882Cf0c6a52120deF8", attempts, time.Millisecond)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return executor
}

func TestExecuteConfirmedMint(t *testing.T) {
	invoker := &fakeInvoker{tx: &wallet.PendingTransaction{Hash: "0xaaa", Link: "https://scan/tx/0xaaa"}}
	reader := &fakeReader{
		steps: []receiptStep{{
			receipt: &chain.Receipt{
				Status: 1,
				Logs: []chain.Log{{
					Address: "0x4B9523186371F5a805d2EF882Cf0c6a52120deF8",
					Topics: []string{
						"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
						"0x0000000000000000000000000000000000000000000000000000000000000000",
						"0x0000000000000000000000001111111111111111111111111111111111111111",
						"0x0000000000000000000000000000000000000000000000000000000000000007",
					},
				}},
			},
		}},
		tokenURI: metadataURI(t, `{"name":"Sunset #7","image":"data:image/svg+xml,%3Csvg%2F%3E"}`),
	}

	executor := newTestExecutor(t, invoker, reader, 3)

	var submittedHash string
	result, err := executor.Execute(context.Background(), "0x1111111111111111111111111111111111111111", func(tx *wallet.PendingTransaction) error {
		submittedHash = tx.Hash
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if submittedHash != "0xaaa" {
		t.Fatalf("onSubmitted hash = %q, want 0xaaa", submittedHash)
	}
	if !result.Confirmed {
		t.Fatalf("mint should be confirmed")
	}
	if result.TokenID.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("token id = %s, want 7", result.TokenID)
	}
	if result.TokenName != "Sunset #7" {
		t.Fatalf("token name = %q", result.TokenName)
	}
	if string(result.ArtifactSVG) != "<svg/>" {
		t.Fatalf("artifact = %q", result.ArtifactSVG)
	}
	if invoker.calls != 1 {
		t.Fatalf("wallet invoked %d times, want exactly 1", invoker.calls)
	}
}

func TestExecuteRetryBudgetExhausted(t *testing.T) {
	invoker := &fakeInvoker{tx: &wallet.PendingTransaction{Hash: "0xbbb"}}
	reader := &fakeReader{
		steps: []receiptStep{{err: chain.ErrReceiptNotFound}},
	}

	executor := newTestExecutor(t, invoker, reader, 3)

	result, err := executor.Execute(context.Background(), "0x2222222222222222222222222222222222222222", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Confirmed {
		t.Fatalf("exhausted polling must report unconfirmed")
	}
	if reader.calls != 3 {
		t.Fatalf("receipt polled %d times, want exactly 3", reader.calls)
	}
	if result.TxHash != "0xbbb" {
		t.Fatalf("tx hash = %q", result.TxHash)
	}
}

func TestExecuteFailedReceiptStopsImmediately(t *testing.T) {
	invoker := &fakeInvoker{tx: &wallet.PendingTransaction{Hash: "0xccc"}}
	reader := &fakeReader{
		steps: []receiptStep{{receipt: &chain.Receipt{Status: 0}}},
	}

	executor := newTestExecutor(t, invoker, reader, 3)

	result, err := executor.Execute(context.Background(), "0x3333333333333333333333333333333333333333", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Confirmed {
		t.Fatalf("failed transaction must report unconfirmed")
	}
	if reader.calls != 1 {
		t.Fatalf("failed receipt must stop polling, polled %d times", reader.calls)
	}
}

func TestExecuteMalformedMetadataIsHardFailure(t *testing.T) {
	invoker := &fakeInvoker{tx: &wallet.PendingTransaction{Hash: "0xddd"}}
	reader := &fakeReader{
		steps: []receiptStep{{
			receipt: &chain.Receipt{
				Status: 1,
				Logs: []chain.Log{{
					Address: "0x4B9523186371F5a805d2EF882Cf0c6a52120deF8",
					Topics:  []string{"0x01"},
				}},
			},
		}},
		tokenURI: metadataURI(t, `{"name":`),
	}

	executor := newTestExecutor(t, invoker, reader, 3)

	if _, err := executor.Execute(context.Background(), "0x4444444444444444444444444444444444444444", nil); err == nil {
		t.Fatalf("malformed metadata must surface as an error")
	}
}

func TestDecodeDataURI(t *testing.T) {
	got, err := decodeDataURI("data:image/svg+xml,%3Csvg%20width%3D%2210%22%2F%3E")
	if err != nil {
		t.Fatalf("decodeDataURI: %v", err)
	}
	if string(got) != `<svg width="10"/>` {
		t.Fatalf("decoded = %q", got)
	}

	if _, err := decodeDataURI("data:image/svg+xml"); err == nil {
		t.Fatalf("missing comma must fail")
	}
}
