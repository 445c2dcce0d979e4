package reply

import (
	"context"
	"errors"
	"strings"
	"testing"

	"MintRelay/internal/llm"
)

type fakeReplier struct {
	uploads      int
	uploadErr    error
	lastText     string
	lastMediaID  string
	lastTweetID  string
	nextReplyID  string
	postErr      error
	uploadedData []byte
}

func (f *fakeReplier) PostReply(_ context.Context, tweetID, text, mediaID string) (string, error) {
	f.lastTweetID = tweetID
	f.lastText = text
	f.lastMediaID = mediaID
	if f.postErr != nil {
		return "", f.postErr
	}
	return f.nextReplyID, nil
}

func (f *fakeReplier) UploadMedia(_ context.Context, data []byte, _ string) (string, error) {
	f.uploads++
	f.uploadedData = data
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "media-42", nil
}

type fakeConverter struct {
	err error
}

func (f *fakeConverter) Convert(_ context.Context, svg []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("png:"), svg...), nil
}

type fakePhraser struct {
	text string
	err  error
}

func (f *fakePhraser) Phrase(_ context.Context, _ llm.Request) (string, error) {
	return f.text, f.err
}

func TestReplySuccessAttachesMedia(t *testing.T) {
	replier := &fakeReplier{nextReplyID: "reply-1"}
	composer, err := NewComposer(replier, "", WithConverter(&fakeConverter{}))
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	replyID, err := composer.ReplySuccess(context.Background(), "tw-1", "alice", "Sunset #7", "https://basescan.org/tx/0xabc", []byte("<svg/>"))
	if err != nil {
		t.Fatalf("ReplySuccess: %v", err)
	}
	if replyID != "reply-1" {
		t.Fatalf("replyID = %q, want reply-1", replyID)
	}
	if replier.lastMediaID != "media-42" {
		t.Fatalf("media id = %q, want media-42", replier.lastMediaID)
	}
	if !strings.Contains(replier.lastText, "https://basescan.org/tx/0xabc") {
		t.Fatalf("reply text missing tx link: %q", replier.lastText)
	}
	if !strings.Contains(replier.lastText, "@alice") {
		t.Fatalf("reply text missing handle: %q", replier.lastText)
	}
}

func TestReplySuccessConverterFailureDropsMedia(t *testing.T) {
	replier := &fakeReplier{nextReplyID: "reply-2"}
	composer, err := NewComposer(replier, "", WithConverter(&fakeConverter{err: errors.New("boom")}))
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	if _, err := composer.ReplySuccess(context.Background(), "tw-2", "bob", "Sunset #8", "https://x/tx", []byte("<svg/>")); err != nil {
		t.Fatalf("ReplySuccess: %v", err)
	}
	if replier.lastMediaID != "" {
		t.Fatalf("media id should be empty when conversion fails, got %q", replier.lastMediaID)
	}
	if replier.uploads != 0 {
		t.Fatalf("upload should not happen after conversion failure")
	}
}

func TestComposeTextFallsBackWhenPhraserOmitsLink(t *testing.T) {
	replier := &fakeReplier{nextReplyID: "reply-3"}
	composer, err := NewComposer(replier, "", WithPhraser(&fakePhraser{text: "congrats, it worked"}))
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	if _, err := composer.ReplySuccess(context.Background(), "tw-3", "carol", "Sunset #9", "https://x/tx/0xdef", nil); err != nil {
		t.Fatalf("ReplySuccess: %v", err)
	}
	if !strings.Contains(replier.lastText, "https://x/tx/0xdef") {
		t.Fatalf("fallback text must carry tx link, got %q", replier.lastText)
	}
}

func TestReplyFailureUsesOutcomeTemplate(t *testing.T) {
	replier := &fakeReplier{nextReplyID: "reply-4"}
	composer, err := NewComposer(replier, "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	address := "0x1111111111111111111111111111111111111111"
	if _, err := composer.ReplyFailure(context.Background(), "tw-4", "dave", llm.OutcomeZeroBalance, address); err != nil {
		t.Fatalf("ReplyFailure: %v", err)
	}
	if !strings.Contains(replier.lastText, "@dave") {
		t.Fatalf("reply text missing handle: %q", replier.lastText)
	}
	if !strings.Contains(strings.ToLower(replier.lastText), "balance") {
		t.Fatalf("zero balance template not used: %q", replier.lastText)
	}
	if !strings.Contains(replier.lastText, address) {
		t.Fatalf("zero balance reply missing address: %q", replier.lastText)
	}
}

func TestReplyFailureQuotesInvalidTarget(t *testing.T) {
	replier := &fakeReplier{nextReplyID: "reply-6"}
	composer, err := NewComposer(replier, "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	if _, err := composer.ReplyFailure(context.Background(), "tw-6", "frank", llm.OutcomeInvalidTarget, "0xDEADBEEF"); err != nil {
		t.Fatalf("ReplyFailure: %v", err)
	}
	if !strings.Contains(replier.lastText, "0xDEADBEEF") {
		t.Fatalf("invalid target reply must quote the original input, got %q", replier.lastText)
	}
}

func TestReplyPostErrorPropagates(t *testing.T) {
	replier := &fakeReplier{postErr: errors.New("rate limited")}
	composer, err := NewComposer(replier, "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	if _, err := composer.ReplyFailure(context.Background(), "tw-5", "erin", llm.OutcomeDuplicate, ""); err == nil {
		t.Fatalf("expected error from failed post")
	}
}

func TestTruncateReply(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := truncateReply(long)
	if len([]rune(got)) != maxReplyLength {
		t.Fatalf("truncated length = %d, want %d", len([]rune(got)), maxReplyLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated text should end with ellipsis")
	}
}
