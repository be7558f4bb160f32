package imucan

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func messages(hook *test.Hook) []string {
	result := make([]string, 0)
	for _, e := range hook.AllEntries() {
		result = append(result, e.Message)
	}
	return result
}

func TestLoggedTransport(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	bus := &mockBus{}
	bus.queue(mustFrame(0x0B0201B0, nil))
	bus.queueEmptyPoll()
	lt := NewLoggedTransport(bus, logger, LogAll, nil)

	assert.NoError(t, lt.Initialize())
	assert.True(t, bus.initialized)

	_, ok, err := lt.ReadRawFrame(context.Background(), time.Millisecond)
	assert.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = lt.ReadRawFrame(context.Background(), time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, lt.WriteRawFrame(context.Background(), EnableFrame(Device{Model: 2, Number: 1})))
	bus.writeErr = errors.New("bus off")
	assert.EqualError(t, lt.WriteRawFrame(context.Background(), DisableFrame(Device{Model: 2, Number: 1})), "bus off")

	assert.NoError(t, lt.Close())
	assert.True(t, bus.closed)

	assert.Equal(t, []string{
		"read frame: 0B0201B0#",
		"wrote frame: 0B020103#0b020101",
		"failed to write frame: 0B020103#0b020100",
	}, messages(hook))
}

func TestLoggedTransport_options(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	bus := &mockBus{}
	bus.queue(mustFrame(0x0B0201B0, nil))
	format := func(frame RawFrame) string {
		return "custom"
	}
	lt := NewLoggedTransport(bus, logger, LogWrite, format)

	_, _, err := lt.ReadRawFrame(context.Background(), time.Millisecond)
	assert.NoError(t, err)
	assert.NoError(t, lt.WriteRawFrame(context.Background(), EnableFrame(Device{Model: 2, Number: 1})))

	assert.Equal(t, []string{"wrote frame: custom"}, messages(hook))
}

func TestLogOption_values(t *testing.T) {
	assert.Equal(t, LogOption(1), LogRead)
	assert.Equal(t, LogOption(2), LogWrite)
	assert.Equal(t, LogOption(3), LogAll)
	assert.Equal(t, LogOption(0), LogNone)
}
