package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageNewEventRoutesToReceiver(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()

	e := NewMessageNewEvent(uuid.New(), sender, receiver, "hi there", "SENT", time.Now().UTC())

	assert.Equal(t, EventMessageNew, e.EventType())
	assert.Equal(t, []string{"user:" + receiver.String()}, e.Channels())
}

func TestMessageDeliveredEventRoutesToSender(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()

	e := NewMessageDeliveredEvent(sender, receiver)

	assert.Equal(t, EventMessageDelivered, e.EventType())
	assert.Equal(t, []string{"user:" + sender.String()}, e.Channels())
}

func TestUnmarshalEventDispatchesByTag(t *testing.T) {
	original := NewMessageNewEvent(uuid.New(), uuid.New(), uuid.New(), "payload", "SENT", time.Now().UTC().Truncate(time.Second))
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var base BaseEvent
	require.NoError(t, json.Unmarshal(data, &base))
	assert.Equal(t, EventMessageNew, base.EventTypeVal)

	event := unmarshalEvent(base.EventTypeVal, data)
	require.NotNil(t, event)

	decoded, ok := event.(*MessageNewEvent)
	require.True(t, ok)
	assert.Equal(t, original.MessageID, decoded.MessageID)
	assert.Equal(t, "payload", decoded.Content)

	assert.Nil(t, unmarshalEvent(EventType("unknown"), data))
}
