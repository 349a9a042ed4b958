package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_JSON(t *testing.T) {
	o := draft("ETH", "1.5", "DOT", "420.25", "2650.5", "2.5")
	o.ID = "abc"
	o.User = alice
	o.Alpha.Ledger = Ledger{Name: "ethereum", Network: "sepolia", ChainID: 11155111}
	o.Locked = true
	o.ValidUntil = time.UnixMilli(1767225600123).UTC()
	o.Creator = Participant{
		WalletUUID:      "wallet-1",
		NetworkIdentity: NetworkIdentity{Type: NetworkIPv4, Identity: "10.0.0.1"},
	}

	data, err := json.Marshal(o)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.IsType(t, "", raw["user_slippage"])
	assert.IsType(t, "", raw["alpha_asset_price"])
	assert.Equal(t, true, raw["is_locked"])
	assert.Equal(t, float64(0), raw["inactive_time_start"])
	assert.Equal(t, "420.25", raw["beta_asset"].(map[string]any)["nominal_amount"])
	creator := raw["creator"].(map[string]any)
	assert.Equal(t, "IPV4", creator["network_identity"].(map[string]any)["network_type"])

	var back Order
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, o, &back)
}

func TestOrder_UnmarshalJSONRejectsBadDecimals(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "amount", json: `{"alpha_asset":{"nominal_amount":"ten"},"beta_asset":{"nominal_amount":"1"}}`},
		{name: "zero amount", json: `{"alpha_asset":{"nominal_amount":"0"},"beta_asset":{"nominal_amount":"1"}}`},
		{name: "negative amount", json: `{"alpha_asset":{"nominal_amount":"1"},"beta_asset":{"nominal_amount":"-1"}}`},
		{name: "price precision", json: `{"alpha_asset":{"nominal_amount":"1"},"beta_asset":{"nominal_amount":"1"},"alpha_asset_price":"0.0005"}`},
		{name: "price", json: `{"alpha_asset":{"nominal_amount":"1"},"beta_asset":{"nominal_amount":"1"},"alpha_asset_price":"-3"}`},
		{name: "slippage", json: `{"alpha_asset":{"nominal_amount":"1"},"beta_asset":{"nominal_amount":"1"},"user_slippage":"101"}`},
		{name: "network", json: `{"alpha_asset":{"nominal_amount":"1"},"beta_asset":{"nominal_amount":"1"},"creator":{"network_identity":{"network_type":"CARRIER_PIGEON"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Order
			assert.Error(t, json.Unmarshal([]byte(tt.json), &o))
		})
	}
}

func TestOrder_IsExpired(t *testing.T) {
	o := &Order{}
	assert.False(t, o.IsExpired(testNow), "no validity window")

	o.ValidUntil = testNow
	assert.False(t, o.IsExpired(testNow.Add(-time.Millisecond)))
	assert.True(t, o.IsExpired(testNow))
	assert.True(t, o.IsExpired(testNow.Add(time.Hour)))
}

func TestOrder_IsReciprocal(t *testing.T) {
	o := draft("X", "1", "Y", "1", "1", "0")
	assert.True(t, o.IsReciprocal(draft("Y", "3", "X", "9", "1", "0")))
	assert.False(t, o.IsReciprocal(draft("X", "1", "Y", "1", "1", "0")))
	assert.False(t, o.IsReciprocal(draft("Y", "1", "Z", "1", "1", "0")))
}

func TestOrder_Validate(t *testing.T) {
	valid := func() *Order { return draft("X", "1", "Y", "2", "3", "4") }
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Order)
		want   error
	}{
		{"empty beta name", func(o *Order) { o.Beta.Name = "" }, ErrInvalidArgument},
		{"zero alpha", func(o *Order) { o.Alpha.NominalAmount = decimal.Zero }, ErrInvalidAmount},
		{"negative beta", func(o *Order) { o.Beta.NominalAmount = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"negative price", func(o *Order) { o.BetaPrice = fpdecimal.FromInt(-1) }, ErrInvalidPrice},
		{"price above maximum", func(o *Order) { o.AlphaPrice = MaxPrice.Add(fpdecimal.FromInt(1)) }, ErrInvalidPrice},
		{"slippage above 100", func(o *Order) { o.Slippage = fpdecimal.FromInt(101) }, ErrInvalidSlippage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(o)
			assert.ErrorIs(t, o.Validate(), tt.want)
		})
	}
}

func TestOrder_Clone(t *testing.T) {
	o := draft("X", "1", "Y", "2", "3", "4")
	c := o.Clone()
	c.Locked = true
	c.Alpha.Name = "Z"
	assert.False(t, o.Locked)
	assert.Equal(t, "X", o.Alpha.Name)

	var nilOrder *Order
	assert.Nil(t, nilOrder.Clone())
}

func TestFilters(t *testing.T) {
	orders := []*Order{
		{ID: "1", User: alice},
		{ID: "2", User: bob},
		{ID: "3", User: alice},
	}

	mine := FilterByUser(orders, alice)
	require.Len(t, mine, 2)
	assert.Equal(t, "1", mine[0].ID)
	assert.Equal(t, "3", mine[1].ID)

	others := FilterExcludingUser(orders, alice)
	require.Len(t, others, 1)
	assert.Equal(t, "2", others[0].ID)

	assert.Equal(t, "2", FindByID(orders, "2").ID)
	assert.Nil(t, FindByID(orders, "4"))
}
