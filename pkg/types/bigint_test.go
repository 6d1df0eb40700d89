package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBigIntUnmarshal(t *testing.T) {
	var v struct {
		A *BigInt `json:"a"`
		B *BigInt `json:"b"`
		C *BigInt `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1000000000000000000000","b":"0x1f","c":42}`), &v))
	require.Equal(t, "1000000000000000000000", v.A.String())
	require.Equal(t, "31", v.B.String())
	require.Equal(t, "42", v.C.String())
}

func TestBigIntUnmarshalInvalid(t *testing.T) {
	var v BigInt
	require.Error(t, json.Unmarshal([]byte(`"0x"`), &v))
	require.Error(t, json.Unmarshal([]byte(`"12ab"`), &v))
	require.Error(t, json.Unmarshal([]byte(`""`), &v))
}

func TestBigIntMarshal(t *testing.T) {
	out, err := json.Marshal(map[string]*BigInt{"v": NewBigInt(nil)})
	require.NoError(t, err)
	require.JSONEq(t, `{"v":"0"}`, string(out))
}

func TestBigIntEqual(t *testing.T) {
	a, err := ParseBigInt("10")
	require.NoError(t, err)

	require.True(t, NewBigInt(a).Equal(NewBigInt(a)))
	require.False(t, NewBigInt(a).Equal(nil))
	require.True(t, (*BigInt)(nil).Equal(&BigInt{}))
}
