package msgs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ardctl/pkg/dispatch"
)

func TestFromEvent(t *testing.T) {
	at := time.Unix(1700000000, 42)
	msg := FromEvent(dispatch.Event{
		Action: dispatch.ActionErase,
		Phase:  dispatch.PhaseDropped,
		Source: dispatch.SourceBitstream,
		Time:   at,
	})
	require.Equal(t, &SequenceEvent{
		Action:    "erase",
		Phase:     "dropped",
		Source:    "bitstream",
		Timestamp: at.UnixNano(),
	}, msg)

	msg = FromEvent(dispatch.Event{
		Action: dispatch.ActionSerialOff,
		Phase:  dispatch.PhaseIgnored,
		Source: dispatch.SourceInject,
		Time:   at,
	})
	require.Equal(t, &GateEvent{Source: "inject", Timestamp: at.UnixNano()}, msg)
}

func TestTypedEnvelope(t *testing.T) {
	data, err := Encode(&GateEvent{Enabled: true, Changed: true, Source: "bitstream", Timestamp: 7})
	require.NoError(t, err)
	typed, err := DecodeTyped(data)
	require.NoError(t, err)
	require.Equal(t, GateEventTypeID, typed.TypeId)
	msg, err := typed.Decode()
	require.NoError(t, err)
	require.Equal(t, &GateEvent{Enabled: true, Changed: true, Source: "bitstream", Timestamp: 7}, msg)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := (&Typed{TypeId: 0x1234}).Decode()
	require.Equal(t, &UnknownTypeError{TypeID: 0x1234}, err)
}
