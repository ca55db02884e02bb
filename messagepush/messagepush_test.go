package messagepush

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeProducerPushTaskUpdate(t *testing.T) {
	p, err := NewKafkaProducer(Config{UseFakeProducer: true, Topic: "tasks"})
	require.NoError(t, err)

	view := types.View{ID: "0x01", Direction: "lock", Recipient: "0xabc", State: "Settled"}
	require.NoError(t, p.PushTaskUpdate(view))
	require.NoError(t, p.Produce("raw", WithTopic("other")))

	msgs := p.GetFakeMessages("tasks")
	require.Len(t, msgs, 1)
	var msg PushMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[0]), &msg))
	assert.Equal(t, BizCodeSettlementTask, msg.BizCode)
	assert.Equal(t, "0xabc", msg.WalletAddress)
	assert.NotEmpty(t, msg.RequestID)
	assert.True(t, strings.HasPrefix(msg.PushContent, "["))
	assert.Empty(t, p.GetFakeMessages("tasks"))
	assert.Equal(t, []string{"raw"}, p.GetFakeMessages("other"))
}

func TestFakeProducerLimit(t *testing.T) {
	p := newFakeProducer(Config{Topic: "t"})
	for i := 0; i < fakeMessageLimit+5; i++ {
		require.NoError(t, p.Produce("m"))
	}
	assert.Len(t, p.GetFakeMessages("t"), fakeMessageLimit)
}

func TestKafkaProducerKeysByTaskID(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "tasks", msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "0x02", string(key))
		return nil
	})
	p := newKafkaProducer(mockProducer, Config{Topic: "tasks"})
	require.NoError(t, p.PushTaskUpdate(types.View{ID: "0x02", Direction: "burn"}))
	require.NoError(t, p.Close())
}
