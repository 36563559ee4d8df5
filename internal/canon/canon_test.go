package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	got, err := Marshal(map[string]any{"b": 1, "a": "x", "c": []any{true, false}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":[true,false]}`, string(got))
}

func TestMarshalUTF16Order(t *testing.T) {
	// U+1F600 encodes to surrogates (0xD83D...) which sort before U+FF5E.
	got, err := Marshal(map[string]any{"～": 1, "\U0001F600": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"～\":1}", string(got))
}

func TestMarshalStrings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no html escape", "<a&b>", `"<a&b>"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash kept", `\u2028`, `"\\u2028"`},
		{"nfc", "é", "\"é\""},
		{"control escaped", "a\nb", `"a\nb"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalNumbers(t *testing.T) {
	got, err := Marshal([]any{int64(-5), Uint(18446744073709551615), uint8(7), uint32(9)})
	require.NoError(t, err)
	assert.Equal(t, `[-5,"18446744073709551615",7,9]`, string(got))
}

func TestMarshalRejects(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)
	_, err = Marshal(map[string]any{"f": 1.5})
	assert.Error(t, err)
	_, err = Marshal(struct{}{})
	assert.Error(t, err)
}

func TestHashIsDomainSeparated(t *testing.T) {
	v := map[string]any{"k": "v"}
	a, err := Hash(DomainEntry, v)
	require.NoError(t, err)
	b, err := Hash(DomainState, v)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)

	again, err := Hash(DomainEntry, map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, a, again)
}
