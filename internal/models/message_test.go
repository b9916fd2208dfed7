package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryStatus_CanAdvance(t *testing.T) {
	cases := []struct {
		from, to DeliveryStatus
		want     bool
	}{
		{DeliveryPending, DeliverySent, true},
		{DeliveryPending, DeliveryConfirmed, true},
		{DeliveryPending, DeliveryFailed, true},
		{DeliverySent, DeliveryConfirmed, true},
		{DeliverySent, DeliveryFailed, true},
		{DeliverySent, DeliveryPending, false},
		{DeliveryConfirmed, DeliveryFailed, false},
		{DeliveryConfirmed, DeliverySent, false},
		{DeliveryFailed, DeliverySent, false},
		{DeliveryFailed, DeliveryConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanAdvance(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestDeliveryStatus_Rank(t *testing.T) {
	// failed < pending < sent < confirmed
	assert.Less(t, DeliveryFailed.Rank(), DeliveryPending.Rank())
	assert.Less(t, DeliveryPending.Rank(), DeliverySent.Rank())
	assert.Less(t, DeliverySent.Rank(), DeliveryConfirmed.Rank())
}

func TestMessage_Peer(t *testing.T) {
	m := &Message{FromPubkey: "alice", ToPubkey: "bob"}
	assert.Equal(t, "bob", m.Peer("alice"))
	assert.Equal(t, "alice", m.Peer("bob"))
}
