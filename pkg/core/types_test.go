package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkIdentityType(t *testing.T) {
	tests := []struct {
		input   string
		want    NetworkIdentityType
		wantErr bool
	}{
		{input: "", want: NetworkOrderService},
		{input: "ORDER_SERVICE", want: NetworkOrderService},
		{input: " ipv4 ", want: NetworkIPv4},
		{input: "IPV6", want: NetworkIPv6},
		{input: "socks5", want: NetworkSOCKS5},
		{input: "VARA", want: NetworkVara},
		{input: "EMPTY", want: NetworkEmpty},
		{input: "CARRIER_PIGEON", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNetworkIdentityType(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "UNKNOWN", NetworkIdentityType(42).String())
}

func TestNetworkIdentity_JSON(t *testing.T) {
	data, err := json.Marshal(NetworkIdentity{Type: NetworkIPv4, Identity: "10.0.0.1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"network_type":"IPV4","identity":"10.0.0.1"}`, string(data))

	var got NetworkIdentity
	require.NoError(t, json.Unmarshal([]byte(`{"network_type":"vara","identity":"x"}`), &got))
	assert.Equal(t, NetworkVara, got.Type)

	assert.Error(t, json.Unmarshal([]byte(`{"network_type":"nope"}`), &got))
}

func TestSwapRoleAndMatchType(t *testing.T) {
	assert.Equal(t, "ALICE", RoleAlice.String())
	assert.Equal(t, "BOB", RoleBob.String())
	assert.Equal(t, "EMPTY", RoleEmpty.String())

	assert.Equal(t, "EXACT", MatchExact.String())
	assert.Equal(t, "PARTIAL", MatchPartial.String())
	assert.Equal(t, "WITH_SLIPPAGE", MatchWithSlippage.String())
	assert.Equal(t, "ONE_TO_MANY", MatchOneToMany.String())
	assert.Equal(t, "NONE", MatchNone.String())
}
