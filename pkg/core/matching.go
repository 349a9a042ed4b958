package core

import (
	"time"

	"github.com/erain9/swapbook/pkg/messaging"
)

// Match pairs the order that was checked with the counterpart found for it.
// Both orders are snapshots taken after locking.
type Match struct {
	Subject     *Order
	Counterpart *Order
	Type        MatchType
}

// Notification is one owner's view of a match
type Notification struct {
	Recipient ActorID
	Pair      OrderPair
}

// Notifications returns the two point-to-point notifications of a match: the
// subject owner plays ALICE and the counterpart owner plays BOB. Both carry
// the counterpart as N1 and the subject as N2.
func (m *Match) Notifications() []Notification {
	pair := func(role SwapRole) OrderPair {
		return OrderPair{
			N1:        m.Counterpart.Clone(),
			N2:        m.Subject.Clone(),
			Role:      role,
			MatchType: m.Type,
		}
	}
	return []Notification{
		{Recipient: m.Subject.User, Pair: pair(RoleAlice)},
		{Recipient: m.Counterpart.User, Pair: pair(RoleBob)},
	}
}

// ToMessagingMatchMessages converts every notification of the match to its
// wire form
func (m *Match) ToMessagingMatchMessages(matchedAt time.Time) []*messaging.MatchMessage {
	notifications := m.Notifications()
	msgs := make([]*messaging.MatchMessage, 0, len(notifications))
	for _, n := range notifications {
		msgs = append(msgs, &messaging.MatchMessage{
			Recipient: n.Recipient.String(),
			Role:      n.Pair.Role.String(),
			MatchType: n.Pair.MatchType.String(),
			N1:        n.Pair.N1.ToMessagingOrder(),
			N2:        n.Pair.N2.ToMessagingOrder(),
			MatchedAt: matchedAt.UnixMilli(),
		})
	}
	return msgs
}

// matchStrategy decides whether cp satisfies a strategy for subject s. The
// shared eligibility rules (other owner, unlocked, reciprocal names, not
// expired) are checked by the caller.
type matchStrategy struct {
	kind  MatchType
	match func(s, cp *Order) bool
}

// strategies in priority order
var strategies = []matchStrategy{
	{kind: MatchExact, match: exactMatch},
	{kind: MatchWithSlippage, match: slippageMatch},
	{kind: MatchPartial, match: partialMatch},
}

func exactMatch(s, cp *Order) bool {
	return !cp.Inactive &&
		cp.Alpha.NominalAmount.Equal(s.Beta.NominalAmount) &&
		cp.Beta.NominalAmount.Equal(s.Alpha.NominalAmount)
}

// slippageMatch ignores the inactive flag
func slippageMatch(s, cp *Order) bool {
	return s.PriceBand().Overlaps(cp.PriceBand())
}

// partialMatch holds when both cross legs differ in the same direction: each
// side has more than the other wants, or each side has less.
func partialMatch(s, cp *Order) bool {
	surplus := cp.Alpha.NominalAmount.GreaterThan(s.Beta.NominalAmount) &&
		s.Alpha.NominalAmount.GreaterThan(cp.Beta.NominalAmount)
	shortfall := cp.Alpha.NominalAmount.LessThan(s.Beta.NominalAmount) &&
		s.Alpha.NominalAmount.LessThan(cp.Beta.NominalAmount)
	return surplus || shortfall
}
