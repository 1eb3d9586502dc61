package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	in := Event{
		Kind:       KindWalletConnect,
		Timestamp:  1735689600000,
		WidgetID:   "widget-1",
		SessionID:  "sess-abc",
		Success:    Bool(false),
		Duration:   1240,
		WalletType: "metamask",
		Error: &ErrorInfo{
			Category:   CategoryWallet,
			Subtype:    "user_rejected",
			Confidence: ConfidenceHigh,
			Reason:     "error_code_match",
			Code:       "4001",
		},
		StoredAt: 1735689600500,
	}

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeUsesShortKeys(t *testing.T) {
	data, err := Encode(Event{Kind: KindLoad, Timestamp: 42, LoadTime: 310, Success: Bool(true)})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "t")
	assert.Contains(t, raw, "ty")
	assert.Contains(t, raw, "lt")
	assert.Contains(t, raw, "su")
	assert.NotContains(t, raw, "timestamp")
	assert.NotContains(t, raw, "load_time")
}

func TestEncodeOmitsZeroFields(t *testing.T) {
	data, err := Encode(Event{Kind: KindRender, Timestamp: 42, RenderTime: 180})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "w")
	assert.NotContains(t, raw, "er")
	assert.NotContains(t, raw, "su")
	assert.NotContains(t, raw, "d")
}

func TestDecodeLegacyVerboseRecord(t *testing.T) {
	payload := `{"type":"load","timestamp":1735689600000,"success":true,"load_time":420}`
	e, err := Decode([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, KindLoad, e.Kind)
	assert.Equal(t, int64(1735689600000), e.Timestamp)
	assert.True(t, e.Succeeded())
	assert.Equal(t, 420.0, e.LoadTime)
}

func TestDecodeAllSkipsMalformed(t *testing.T) {
	good1, _ := Encode(Event{Kind: KindLoad, Timestamp: 1})
	good2, _ := Encode(Event{Kind: KindRender, Timestamp: 2})
	events := DecodeAll([]string{string(good1), "{not json", string(good2)})
	require.Len(t, events, 2)
	assert.Equal(t, KindLoad, events[0].Kind)
	assert.Equal(t, KindRender, events[1].Kind)
}
