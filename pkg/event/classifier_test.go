package event

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCategorizeErrorRejectionCodes(t *testing.T) {
	for _, code := range RejectionCodes {
		info := CategorizeError(code, "", "something went wrong")
		assert.Equal(t, CategoryWallet, info.Category, "code %s", code)
		assert.Equal(t, "user_rejected", info.Subtype)
		assert.Equal(t, ConfidenceHigh, info.Confidence)
		assert.Equal(t, "error_code_match", info.Reason)
	}
}

func TestCategorizeErrorCodeBeatsMessage(t *testing.T) {
	// The code rule runs first even when the message would match a
	// different category.
	info := CategorizeError("4001", "", "network error during fetch")
	assert.Equal(t, CategoryWallet, info.Category)
	assert.Equal(t, "user_rejected", info.Subtype)
}

func TestCategorizeErrorNameMatch(t *testing.T) {
	info := CategorizeError("", "UserRejectedRequestError", "no useful message")
	assert.Equal(t, CategoryWallet, info.Category)
	assert.Equal(t, ConfidenceHigh, info.Confidence)
	assert.Equal(t, "error_name_match", info.Reason)
}

func TestCategorizeErrorDirectPhrase(t *testing.T) {
	info := CategorizeError("", "", "MetaMask Tx Signature: User denied transaction signature.")
	assert.Equal(t, CategoryWallet, info.Category)
	assert.Equal(t, "user_rejected", info.Subtype)
	assert.Equal(t, ConfidenceHigh, info.Confidence)
	assert.Equal(t, "direct_pattern_match", info.Reason)
}

func TestCategorizeErrorIndirectPhrase(t *testing.T) {
	info := CategorizeError("", "", "Popup closed before completing the request")
	assert.Equal(t, CategoryWallet, info.Category)
	assert.Equal(t, "user_rejected", info.Subtype)
	assert.Equal(t, ConfidenceMedium, info.Confidence)
	assert.Equal(t, "indirect_pattern_match", info.Reason)
}

func TestCategorizeErrorKeywordTables(t *testing.T) {
	cases := []struct {
		message  string
		category Category
		subtype  string
	}{
		{"request timeout after 30s", CategoryNetwork, "timeout"},
		{"execution reverted: ERC20: transfer amount exceeds balance", CategoryContract, "revert"},
		{"RPC error: method not supported", CategoryRPC, "rpc error"},
		{"transaction failed with status 0", CategoryTransaction, "transaction failed"},
		{"invalid address checksum", CategoryValidation, "invalid"},
	}
	for _, tc := range cases {
		info := CategorizeError("", "", tc.message)
		assert.Equal(t, tc.category, info.Category, tc.message)
		assert.Equal(t, tc.subtype, info.Subtype, tc.message)
		assert.Equal(t, ConfidenceMedium, info.Confidence)
		assert.Equal(t, "keyword_match", info.Reason)
	}
}

func TestCategorizeErrorWalletContextFallback(t *testing.T) {
	info := CategorizeError("", "", "metamask extension crashed unexpectedly")
	assert.Equal(t, CategoryWallet, info.Category)
	assert.Equal(t, "technical_error", info.Subtype)
	assert.Equal(t, ConfidenceLow, info.Confidence)
}

func TestCategorizeErrorUnknown(t *testing.T) {
	info := CategorizeError("", "", "completely unrecognizable failure")
	assert.Equal(t, CategoryUnknown, info.Category)
	assert.Equal(t, "uncategorized", info.Subtype)
	assert.Equal(t, ConfidenceNone, info.Confidence)
	assert.Equal(t, "no_match_found", info.Reason)
}

func TestCategorizeErrorTruncatesMessage(t *testing.T) {
	long := ""
	for n := 0; n < 30; n++ {
		long += "abcdefghij"
	}
	info := CategorizeError("", "", long)
	assert.Len(t, info.Message, 100)
}

func TestCategorizeErrorTruncatesOnRuneBoundary(t *testing.T) {
	// 98 ASCII bytes then a three-byte rune straddling the cap.
	long := strings.Repeat("a", 98) + "日本語のエラー"
	info := CategorizeError("", "", long)
	assert.True(t, utf8.ValidString(info.Message))
	assert.LessOrEqual(t, len(info.Message), 100)
	assert.Equal(t, strings.Repeat("a", 98), info.Message[:98])
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   Event
		want Kind
	}{
		{"typed kind wins", Event{Kind: KindWalletConnect, EventName: "rpc_call"}, KindWalletConnect},
		{"named load", Event{EventName: "widget_load_complete"}, KindLoad},
		{"named load error", Event{EventName: "load_error_detailed"}, KindLoadError},
		{"named render", Event{EventName: "render_complete"}, KindRender},
		{"named wallet", Event{EventName: "wallet_connect_detailed"}, KindWalletConnect},
		{"named rpc", Event{EventName: "rpc_call"}, KindRPC},
		{"named transaction", Event{EventName: "transaction_detailed"}, KindTransaction},
		{"unknown name", Event{EventName: "scroll_depth"}, KindCustom},
		{"empty", Event{}, KindCustom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.in))
		})
	}
}
