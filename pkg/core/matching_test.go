package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactMatch(t *testing.T) {
	s := draft("X", "10", "Y", "5", "1", "0")

	assert.True(t, exactMatch(s, draft("Y", "5.00", "X", "10.0", "1", "0")))
	assert.False(t, exactMatch(s, draft("Y", "5", "X", "10.001", "1", "0")))

	inactive := draft("Y", "5", "X", "10", "1", "0")
	inactive.Inactive = true
	assert.False(t, exactMatch(s, inactive))
}

func TestSlippageMatch(t *testing.T) {
	tests := []struct {
		name  string
		s, cp *Order
		want  bool
	}{
		{"inside band", draft("X", "1", "Y", "1", "100", "5"), draft("Y", "1", "X", "1", "102", "0"), true},
		{"outside band", draft("X", "1", "Y", "1", "100", "1"), draft("Y", "1", "X", "1", "110", "0"), false},
		{"bands touch", draft("X", "1", "Y", "1", "100", "5"), draft("Y", "1", "X", "1", "110", "5"), true},
		{"zero tolerance equal prices", draft("X", "1", "Y", "1", "7", "0"), draft("Y", "1", "X", "1", "7", "0"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slippageMatch(tt.s, tt.cp))
			assert.Equal(t, tt.want, slippageMatch(tt.cp, tt.s))
		})
	}
}

func TestPartialMatch(t *testing.T) {
	s := draft("X", "10", "Y", "5", "1", "0")

	tests := []struct {
		name string
		cp   *Order
		want bool
	}{
		{"both sides have surplus", draft("Y", "20", "X", "8", "1", "0"), true},
		{"both sides fall short", draft("Y", "4", "X", "11", "1", "0"), true},
		{"mixed", draft("Y", "20", "X", "12", "1", "0"), false},
		{"equal leg", draft("Y", "5", "X", "8", "1", "0"), false},
		{"exact", draft("Y", "5", "X", "10", "1", "0"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, partialMatch(s, tt.cp))
		})
	}
}

func TestMatch_ToMessagingMatchMessages(t *testing.T) {
	subject := draft("X", "10", "Y", "5", "100", "0")
	subject.ID, subject.User, subject.Locked = "s", alice, true
	cp := draft("Y", "5", "X", "10", "100", "0")
	cp.ID, cp.User, cp.Locked = "c", bob, true

	m := &Match{Subject: subject, Counterpart: cp, Type: MatchPartial}
	msgs := m.ToMessagingMatchMessages(testNow)
	require.Len(t, msgs, 2)

	assert.Equal(t, alice.String(), msgs[0].Recipient)
	assert.Equal(t, "ALICE", msgs[0].Role)
	assert.Equal(t, bob.String(), msgs[1].Recipient)
	assert.Equal(t, "BOB", msgs[1].Role)
	for _, msg := range msgs {
		assert.Equal(t, "PARTIAL", msg.MatchType)
		assert.Equal(t, "c", msg.N1.ID)
		assert.Equal(t, "s", msg.N2.ID)
		assert.True(t, msg.N1.IsLocked)
		assert.True(t, msg.N2.IsLocked)
		assert.Equal(t, testNow.UnixMilli(), msg.MatchedAt)
	}

	// notifications carry their own copies
	m.Notifications()[0].Pair.N1.Alpha.Name = "changed"
	assert.Equal(t, "Y", cp.Alpha.Name)
}
