// Package msgs defines the events published by the daemon.
//
// Events are protobuf encoded and wrapped in a Typed envelope so a
// subscriber can decode them without knowing the topic.
package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/ardctl/pkg/dispatch"
)

// Message is a serializable event.
type Message interface {
	proto.Message
	TypeID() uint32
	NewMessage() Message
}

// SequenceEvent reports progress of an erase or shutdown request.
type SequenceEvent struct {
	Action    string `protobuf:"bytes,1,opt,name=action,proto3" json:"action,omitempty"`
	Phase     string `protobuf:"bytes,2,opt,name=phase,proto3" json:"phase,omitempty"`
	Source    string `protobuf:"bytes,3,opt,name=source,proto3" json:"source,omitempty"`
	Timestamp int64  `protobuf:"varint,4,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// NewMessage implements Message.
func (m *SequenceEvent) NewMessage() Message { return &SequenceEvent{} }

// TypeID implements Message.
func (m *SequenceEvent) TypeID() uint32 { return SequenceEventTypeID }

// ProtoMessage implements proto.Message.
func (m *SequenceEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SequenceEvent) Reset() { *m = SequenceEvent{} }

// String implements proto.Message.
func (m *SequenceEvent) String() string { return proto.CompactTextString(m) }

// GateEvent reports a serial gate request.
type GateEvent struct {
	Enabled   bool   `protobuf:"varint,1,opt,name=enabled,proto3" json:"enabled,omitempty"`
	Changed   bool   `protobuf:"varint,2,opt,name=changed,proto3" json:"changed,omitempty"`
	Source    string `protobuf:"bytes,3,opt,name=source,proto3" json:"source,omitempty"`
	Timestamp int64  `protobuf:"varint,4,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// NewMessage implements Message.
func (m *GateEvent) NewMessage() Message { return &GateEvent{} }

// TypeID implements Message.
func (m *GateEvent) TypeID() uint32 { return GateEventTypeID }

// ProtoMessage implements proto.Message.
func (m *GateEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *GateEvent) Reset() { *m = GateEvent{} }

// String implements proto.Message.
func (m *GateEvent) String() string { return proto.CompactTextString(m) }

// FrameEvent reports an authenticated frame decoded from the bitstream.
type FrameEvent struct {
	Command   uint32 `protobuf:"varint,1,opt,name=command,proto3" json:"command,omitempty"`
	Timestamp int64  `protobuf:"varint,2,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// NewMessage implements Message.
func (m *FrameEvent) NewMessage() Message { return &FrameEvent{} }

// TypeID implements Message.
func (m *FrameEvent) TypeID() uint32 { return FrameEventTypeID }

// ProtoMessage implements proto.Message.
func (m *FrameEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *FrameEvent) Reset() { *m = FrameEvent{} }

// String implements proto.Message.
func (m *FrameEvent) String() string { return proto.CompactTextString(m) }

// FromEvent converts a dispatch event.
func FromEvent(ev dispatch.Event) Message {
	ts := ev.Time.UnixNano()
	switch ev.Action {
	case dispatch.ActionSerialOn, dispatch.ActionSerialOff:
		return &GateEvent{
			Enabled:   ev.Action == dispatch.ActionSerialOn,
			Changed:   ev.Phase == dispatch.PhaseCompleted,
			Source:    string(ev.Source),
			Timestamp: ts,
		}
	}
	return &SequenceEvent{
		Action:    string(ev.Action),
		Phase:     string(ev.Phase),
		Source:    string(ev.Source),
		Timestamp: ts,
	}
}

// NewFrameEvent creates a FrameEvent.
func NewFrameEvent(command uint8, t time.Time) *FrameEvent {
	return &FrameEvent{Command: uint32(command), Timestamp: t.UnixNano()}
}
