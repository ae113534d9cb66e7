package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomCodeFromChannel(t *testing.T) {
	assert.Equal(t, "ABC234", roomCodeFromChannel("room:ABC234:events"))
	assert.Equal(t, "", roomCodeFromChannel("room:ABC234"))
	assert.Equal(t, "", roomCodeFromChannel("other:ABC234:events"))
	assert.Equal(t, "", roomCodeFromChannel("room:ABC234:scores"))
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "room:ABC234:events", channelFor("ABC234"))
}
