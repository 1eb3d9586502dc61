package event

import (
	"strings"
	"unicode/utf8"
)

// RejectionCodes are provider error codes that mean the user declined
// the request. 4001 is the EIP-1193 user rejection; 4100 and -32603
// are used by some providers for the same thing.
var RejectionCodes = []string{
	"4001",
	"4100",
	"-32603",
	"ACTION_REJECTED",
	"UNAUTHORIZED",
	"USER_REJECTED",
	"REJECTED_BY_USER",
}

// RejectionNames are substrings of error type names that signal a
// user rejection regardless of the message text. "userrejected"
// covers UserRejectedRequestError, the standard EIP-1193 rejection
// exception thrown by viem and most providers.
var RejectionNames = []string{
	"userrejected",
	"usererror",
	"rejectionerror",
	"cancellederror",
	"aborterror",
}

// DirectRejectionPhrases match with high confidence: the message
// states outright that the user declined.
var DirectRejectionPhrases = []string{
	"user rejected", "user denied", "user cancelled", "user canceled",
	"rejected by user", "denied by user", "cancelled by user", "canceled by user",
	"user declined", "declined by user", "user aborted", "aborted by user",
	"user refused", "refused by user", "permission denied by user",
	"access denied by user", "request denied by user",
}

// IndirectRejectionPhrases usually mean a rejection but can also be
// produced by extension crashes, so they only earn medium confidence.
var IndirectRejectionPhrases = []string{
	"popup closed", "wallet closed", "connection refused", "request refused",
	"permission denied", "access denied", "unauthorized access",
	"authentication failed", "signing cancelled", "signing canceled",
}

// categoryKeywords maps non-wallet categories to message keywords.
// Order matters: earlier entries win when a message matches several.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryNetwork, []string{"network error", "timeout", "connection", "fetch", "cors", "network changed"}},
	{CategoryContract, []string{"revert", "execution reverted", "gas", "out of gas", "insufficient funds"}},
	{CategoryRPC, []string{"rpc error", "internal error", "method not found", "invalid params"}},
	{CategoryTransaction, []string{"transaction failed", "nonce", "replacement transaction", "already known"}},
	{CategoryValidation, []string{"invalid", "missing", "required", "format", "length"}},
}

// walletContextTerms pull an otherwise unmatched error into the
// wallet bucket as a technical failure.
var walletContextTerms = []string{"wallet", "metamask", "ethereum", "web3"}

// CategorizeError classifies a raw error signal into a category,
// subtype and confidence level. Rules run in a fixed order and the
// first match wins: code match, name match, direct phrase, indirect
// phrase, category keyword, wallet context, then the uncategorized
// fallback. Matching is case insensitive.
func CategorizeError(code, name, message string) ErrorInfo {
	msg := strings.ToLower(message)
	lowName := strings.ToLower(name)

	for _, rc := range RejectionCodes {
		if code == rc {
			return ErrorInfo{
				Category:   CategoryWallet,
				Subtype:    "user_rejected",
				Confidence: ConfidenceHigh,
				Reason:     "error_code_match",
				Code:       code,
			}
		}
	}

	for _, rn := range RejectionNames {
		if lowName != "" && strings.Contains(lowName, rn) {
			return ErrorInfo{
				Category:   CategoryWallet,
				Subtype:    "user_rejected",
				Confidence: ConfidenceHigh,
				Reason:     "error_name_match",
				Name:       lowName,
			}
		}
	}

	for _, p := range DirectRejectionPhrases {
		if strings.Contains(msg, p) {
			return ErrorInfo{
				Category:   CategoryWallet,
				Subtype:    "user_rejected",
				Confidence: ConfidenceHigh,
				Reason:     "direct_pattern_match",
				Message:    truncate(msg, 100),
			}
		}
	}

	for _, p := range IndirectRejectionPhrases {
		if strings.Contains(msg, p) {
			return ErrorInfo{
				Category:   CategoryWallet,
				Subtype:    "user_rejected",
				Confidence: ConfidenceMedium,
				Reason:     "indirect_pattern_match",
				Message:    truncate(msg, 100),
			}
		}
	}

	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(msg, kw) {
				return ErrorInfo{
					Category:   ck.category,
					Subtype:    kw,
					Confidence: ConfidenceMedium,
					Reason:     "keyword_match",
					Message:    truncate(msg, 100),
				}
			}
		}
	}

	for _, term := range walletContextTerms {
		if strings.Contains(msg, term) {
			return ErrorInfo{
				Category:   CategoryWallet,
				Subtype:    "technical_error",
				Confidence: ConfidenceLow,
				Reason:     "wallet_context_fallback",
				Message:    truncate(msg, 100),
			}
		}
	}

	return ErrorInfo{
		Category:   CategoryUnknown,
		Subtype:    "uncategorized",
		Confidence: ConfidenceNone,
		Reason:     "no_match_found",
		Message:    truncate(msg, 100),
	}
}

// truncate caps a message at n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// kindByName maps legacy named events, emitted before the typed
// collector existed, to their families.
var kindByName = map[string]Kind{
	"widget_load_complete":    KindLoad,
	"load_complete":           KindLoad,
	"load_error_detailed":     KindLoadError,
	"render_complete":         KindRender,
	"component_render":        KindRender,
	"wallet_connect_detailed": KindWalletConnect,
	"wallet_connect":          KindWalletConnect,
	"rpc_call":                KindRPC,
	"rpc_detailed":            KindRPC,
	"transaction_detailed":    KindTransaction,
}

// Classify resolves the family of an event. Typed events keep their
// declared kind; untyped ones are resolved from the event name, and
// anything unrecognized lands in the custom family.
func Classify(e Event) Kind {
	if e.Kind != "" && e.Kind != KindCustom {
		return e.Kind
	}
	if k, ok := kindByName[e.EventName]; ok {
		return k
	}
	return KindCustom
}
