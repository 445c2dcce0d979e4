package admission

import "testing"

const sampleAddress = "0x1111111111111111111111111111111111111111"

func TestExtractValidAddress(t *testing.T) {
	extractor := NewExtractor("MintBot")

	got := extractor.Extract("@MintBot Mint nft to " + sampleAddress)
	if got.Kind != KindValid {
		t.Fatalf("kind = %v, want valid", got.Kind)
	}
	if got.Address != sampleAddress {
		t.Fatalf("address = %q", got.Address)
	}
	if got.Domain != "" {
		t.Fatalf("domain should be empty, got %q", got.Domain)
	}
}

func TestExtractTruncatedAddressIsInvalid(t *testing.T) {
	extractor := NewExtractor("MintBot")

	got := extractor.Extract("@MintBot Mint nft to 0xABCDEF1234")
	if got.Kind != KindInvalid {
		t.Fatalf("kind = %v, want invalid", got.Kind)
	}
	if got.Literal != "0xABCDEF1234" {
		t.Fatalf("literal = %q", got.Literal)
	}
}

func TestExtractDomainName(t *testing.T) {
	extractor := NewExtractor("MintBot")

	got := extractor.Extract("@MintBot please mint to Alice.ETH thanks!")
	if got.Kind != KindValid {
		t.Fatalf("kind = %v, want valid", got.Kind)
	}
	if got.Domain != "alice.eth" {
		t.Fatalf("domain = %q, want alice.eth", got.Domain)
	}
	if got.Address != "" {
		t.Fatalf("address should be empty, got %q", got.Address)
	}
}

func TestExtractEarliestLiteralWins(t *testing.T) {
	extractor := NewExtractor("MintBot")

	got := extractor.Extract("mint to " + sampleAddress + " aka bob.eth")
	if got.Kind != KindValid || got.Address != sampleAddress || got.Domain != "" {
		t.Fatalf("address appears first and should win, got %+v", got)
	}

	got = extractor.Extract("mint to bob.eth not " + sampleAddress)
	if got.Kind != KindValid || got.Domain != "bob.eth" || got.Address != "" {
		t.Fatalf("name appears first and should win, got %+v", got)
	}
}

func TestExtractTruncatedAddressBeforeDomain(t *testing.T) {
	extractor := NewExtractor("MintBot")

	got := extractor.Extract("mint to 0xDEADBEEF or maybe bob.eth")
	if got.Kind != KindInvalid || got.Literal != "0xDEADBEEF" {
		t.Fatalf("earlier malformed address should win over later name, got %+v", got)
	}
}

func TestExtractNoRequest(t *testing.T) {
	extractor := NewExtractor("MintBot")

	got := extractor.Extract("@MintBot love your work!")
	if got.Kind != KindNoRequest {
		t.Fatalf("kind = %v, want no request", got.Kind)
	}
}

func TestExtractTaggedUserSkipsBot(t *testing.T) {
	extractor := NewExtractor("MintBot")

	got := extractor.Extract("@MintBot mint one for @friend at " + sampleAddress)
	if got.TaggedUser != "friend" {
		t.Fatalf("tagged user = %q, want friend", got.TaggedUser)
	}

	got = extractor.Extract("@mintbot mint to " + sampleAddress)
	if got.TaggedUser != "" {
		t.Fatalf("bot self-mention must not count, got %q", got.TaggedUser)
	}
}
