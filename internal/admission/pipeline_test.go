package admission

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"MintRelay/internal/chain"
	"MintRelay/internal/mention"
	"MintRelay/internal/mint"
	"MintRelay/internal/reply"
	"MintRelay/internal/reputation"
	"MintRelay/internal/wallet"
)

const (
	testAddress  = "0xABCDEF0123456789abcdef0123456789ABCDEF12"
	testContract = "0x4B9523186371F5a805d2EF882Cf0c6a52120deF8"
)

type stubReader struct {
	balance    *big.Int
	balanceErr error
	receipt    *chain.Receipt
	receiptErr error
	polls      int
}

func (s *stubReader) BalanceAt(context.Context, string) (*big.Int, error) {
	if s.balanceErr != nil {
		return nil, s.balanceErr
	}
	return s.balance, nil
}

func (s *stubReader) TransactionReceipt(context.Context, string) (*chain.Receipt, error) {
	s.polls++
	if s.receiptErr != nil {
		return nil, s.receiptErr
	}
	return s.receipt, nil
}

func (s *stubReader) TokenURI(context.Context, string, *big.Int) (string, error) {
	meta := `{"name":"Sunset #7","image":"data:image/svg+xml,%3Csvg%2F%3E"}`
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(meta)), nil
}

func (s *stubReader) Close() {}

type stubScorer struct {
	score int
	err   error
}

func (s *stubScorer) Score(context.Context, string) (*reputation.Score, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &reputation.Score{Value: s.score}, nil
}

type stubResolver struct {
	address string
	err     error
}

func (s *stubResolver) Resolve(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.address, nil
}

type stubInvoker struct {
	calls int
}

func (s *stubInvoker) Invoke(context.Context, string, string, map[string]string, string) (*wallet.PendingTransaction, error) {
	s.calls++
	return &wallet.PendingTransaction{Hash: "0xfeed", Link: "https://scan/tx/0xfeed"}, nil
}

type stubReplier struct {
	posts    int
	lastText string
}

func (s *stubReplier) PostReply(_ context.Context, _, text, _ string) (string, error) {
	s.posts++
	s.lastText = text
	return "reply-9", nil
}

func (s *stubReplier) UploadMedia(context.Context, []byte, string) (string, error) {
	return "media-1", nil
}

func confirmedReceipt() *chain.Receipt {
	return &chain.Receipt{
		Status: 1,
		Logs: []chain.Log{{
			Address: testContract,
			Topics:  []string{"0x01", "0x0000000000000000000000000000000000000000000000000000000000000007"},
		}},
	}
}

type pipelineEnv struct {
	ledger   *mention.MemoryLedger
	reader   *stubReader
	scorer   *stubScorer
	resolver *stubResolver
	invoker  *stubInvoker
	replier  *stubReplier
	pipeline *Pipeline
}

func newPipelineEnv(t *testing.T, reader *stubReader, scorer *stubScorer, adminID string) *pipelineEnv {
	t.Helper()

	env := &pipelineEnv{
		ledger:   mention.NewMemoryLedger(),
		reader:   reader,
		scorer:   scorer,
		resolver: &stubResolver{err: chain.ErrNameNotFound},
		invoker:  &stubInvoker{},
		replier:  &stubReplier{},
	}

	executor, err := mint.NewExecutor(env.invoker, reader, mint.NewMetadataFetcher(time.Second), testContract, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	composer, err := reply.NewComposer(env.replier, "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	env.pipeline, err = NewPipeline(Options{
		Ledger:        env.ledger,
		Extractor:     NewExtractor("MintBot"),
		Resolver:      env.resolver,
		Reader:        reader,
		Scorer:        scorer,
		Executor:      executor,
		Composer:      composer,
		Threshold:     20,
		AdminAuthorID: adminID,
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return env
}

func mintMention(id, authorID string) mention.Mention {
	return mention.Mention{
		ID:           id,
		Text:         "@MintBot Mint nft to " + testAddress,
		AuthorID:     authorID,
		AuthorHandle: "alice",
	}
}

func TestPipelineZeroBalance(t *testing.T) {
	env := newPipelineEnv(t, &stubReader{balance: big.NewInt(0)}, &stubScorer{score: 50}, "")

	got, err := env.pipeline.Process(context.Background(), mintMention("100", "u1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != mention.StatusZeroBalance {
		t.Fatalf("status = %q, want zero_balance", got.Status)
	}
	if env.invoker.calls != 0 {
		t.Fatalf("wallet must not be invoked on zero balance")
	}

	entry, err := env.ledger.Get(context.Background(), "100")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != mention.StatusZeroBalance || entry.MintSucceeded {
		t.Fatalf("entry = %+v", entry)
	}
	if !strings.Contains(env.replier.lastText, testAddress) {
		t.Fatalf("zero balance reply must quote the address: %q", env.replier.lastText)
	}
}

func TestPipelineInvalidAddressReplyQuotesLiteral(t *testing.T) {
	env := newPipelineEnv(t, &stubReader{balance: big.NewInt(1)}, &stubScorer{score: 50}, "")

	got, err := env.pipeline.Process(context.Background(), mention.Mention{
		ID:           "110",
		Text:         "@MintBot Mint nft to 0xDEADBEEF",
		AuthorID:     "u1",
		AuthorHandle: "alice",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != mention.StatusInvalidAddress {
		t.Fatalf("status = %q, want invalid_address", got.Status)
	}
	if !strings.Contains(env.replier.lastText, "0xDEADBEEF") {
		t.Fatalf("reply must quote the original input: %q", env.replier.lastText)
	}
}

func TestPipelineBalanceFailureFailsClosed(t *testing.T) {
	env := newPipelineEnv(t, &stubReader{balanceErr: errors.New("rpc down")}, &stubScorer{score: 50}, "")

	got, err := env.pipeline.Process(context.Background(), mintMention("101", "u1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != mention.StatusZeroBalance {
		t.Fatalf("unreachable balance service must reject, got %q", got.Status)
	}
	if env.invoker.calls != 0 {
		t.Fatalf("wallet must not be invoked when balance check fails")
	}
}

func TestPipelineReputationFailureFailsClosed(t *testing.T) {
	env := newPipelineEnv(t, &stubReader{balance: big.NewInt(1)}, &stubScorer{err: errors.New("scorer down")}, "")

	got, err := env.pipeline.Process(context.Background(), mintMention("102", "u1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != mention.StatusLowReputation {
		t.Fatalf("status = %q, want low_reputation", got.Status)
	}
}

func TestPipelineThresholdIsClosedBound(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(1), receipt: confirmedReceipt()}
	env := newPipelineEnv(t, reader, &stubScorer{score: 20}, "")

	got, err := env.pipeline.Process(context.Background(), mintMention("103", "u1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != mention.StatusProcessed {
		t.Fatalf("score equal to threshold must pass, got %q", got.Status)
	}
}

func TestPipelineSuccessfulMint(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(1), receipt: confirmedReceipt()}
	env := newPipelineEnv(t, reader, &stubScorer{score: 50}, "")

	got, err := env.pipeline.Process(context.Background(), mintMention("200", "u2"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != mention.StatusProcessed {
		t.Fatalf("status = %q, want processed", got.Status)
	}
	if env.invoker.calls != 1 {
		t.Fatalf("wallet invoked %d times, want 1", env.invoker.calls)
	}
	if !strings.Contains(env.replier.lastText, "https://scan/tx/0xfeed") {
		t.Fatalf("success reply missing tx link: %q", env.replier.lastText)
	}

	entry, err := env.ledger.Get(context.Background(), "200")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !entry.MintSucceeded || entry.TxHash != "0xfeed" || entry.ReplyID != "reply-9" {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestPipelineDuplicateAfterSuccess(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(1), receipt: confirmedReceipt()}
	env := newPipelineEnv(t, reader, &stubScorer{score: 50}, "")

	if _, err := env.pipeline.Process(context.Background(), mintMention("300", "u3")); err != nil {
		t.Fatalf("first Process: %v", err)
	}

	got, err := env.pipeline.Process(context.Background(), mintMention("301", "u3"))
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if got.Status != mention.StatusDuplicate {
		t.Fatalf("status = %q, want duplicate_request", got.Status)
	}
	if env.invoker.calls != 1 {
		t.Fatalf("wallet must not be re-invoked for a duplicate, calls = %d", env.invoker.calls)
	}
}

func TestPipelineAdminBypassesDuplicateCheck(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(1), receipt: confirmedReceipt()}
	env := newPipelineEnv(t, reader, &stubScorer{score: 50}, "admin-1")

	if _, err := env.pipeline.Process(context.Background(), mintMention("400", "admin-1")); err != nil {
		t.Fatalf("first Process: %v", err)
	}

	got, err := env.pipeline.Process(context.Background(), mintMention("401", "admin-1"))
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if got.Status != mention.StatusProcessed {
		t.Fatalf("admin retry should mint again, got %q", got.Status)
	}
	if env.invoker.calls != 2 {
		t.Fatalf("admin mint should invoke wallet again, calls = %d", env.invoker.calls)
	}
}

func TestPipelineNotARequestLeavesNoEntry(t *testing.T) {
	env := newPipelineEnv(t, &stubReader{balance: big.NewInt(1)}, &stubScorer{score: 50}, "")

	got, err := env.pipeline.Process(context.Background(), mention.Mention{
		ID:           "500",
		Text:         "@MintBot great project!",
		AuthorID:     "u5",
		AuthorHandle: "eve",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !got.NotARequest {
		t.Fatalf("expected a silent drop, got %+v", got)
	}
	if _, err := env.ledger.Get(context.Background(), "500"); !errors.Is(err, mention.ErrMentionNotFound) {
		t.Fatalf("no ledger entry expected, got err = %v", err)
	}
	if env.replier.posts != 0 {
		t.Fatalf("no reply expected for a non-request")
	}
}

func TestPipelineReplayIsNoOp(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(1), receipt: confirmedReceipt()}
	env := newPipelineEnv(t, reader, &stubScorer{score: 50}, "")

	if _, err := env.pipeline.Process(context.Background(), mintMention("600", "u6")); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	postsAfterFirst := env.replier.posts

	got, err := env.pipeline.Process(context.Background(), mintMention("600", "u6"))
	if err != nil {
		t.Fatalf("replay Process: %v", err)
	}
	if !got.Skipped {
		t.Fatalf("replay must be skipped, got %+v", got)
	}
	if env.invoker.calls != 1 {
		t.Fatalf("replay must not mint again, calls = %d", env.invoker.calls)
	}
	if env.replier.posts != postsAfterFirst {
		t.Fatalf("replay must not reply again")
	}
}

func TestPipelineUnconfirmedMintRecordsProcessedWithoutSuccess(t *testing.T) {
	reader := &stubReader{balance: big.NewInt(1), receiptErr: chain.ErrReceiptNotFound}
	env := newPipelineEnv(t, reader, &stubScorer{score: 50}, "")

	got, err := env.pipeline.Process(context.Background(), mintMention("700", "u7"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != mention.StatusProcessed {
		t.Fatalf("status = %q, want processed", got.Status)
	}
	if reader.polls != 3 {
		t.Fatalf("receipt polled %d times, want exactly 3", reader.polls)
	}

	entry, err := env.ledger.Get(context.Background(), "700")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.MintSucceeded {
		t.Fatalf("unconfirmed mint must not be marked successful")
	}
	if entry.TxHash != "0xfeed" {
		t.Fatalf("tx hash should still be recorded, got %q", entry.TxHash)
	}
}

func TestPipelineDomainResolutionFailure(t *testing.T) {
	env := newPipelineEnv(t, &stubReader{balance: big.NewInt(1)}, &stubScorer{score: 50}, "")

	got, err := env.pipeline.Process(context.Background(), mention.Mention{
		ID:           "800",
		Text:         "@MintBot mint to nobody.eth",
		AuthorID:     "u8",
		AuthorHandle: "frank",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != mention.StatusInvalidAddress {
		t.Fatalf("status = %q, want invalid_address", got.Status)
	}

	entry, err := env.ledger.Get(context.Background(), "800")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.MintedDomain != "nobody.eth" {
		t.Fatalf("domain literal should be preserved, got %q", entry.MintedDomain)
	}
	if !strings.Contains(env.replier.lastText, "nobody.eth") {
		t.Fatalf("reply must quote the unresolved name: %q", env.replier.lastText)
	}
}
