package msgs

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

// TypeID layout
const (
	TypeIDKindEvent uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000

	GroupSequence uint32 = 0x00010000
	GroupGate     uint32 = 0x00020000
	GroupFrame    uint32 = 0x00030000
)

// TypeIDs
const (
	SequenceEventTypeID = TypeIDKindEvent | GroupSequence | 0x0001
	GateEventTypeID     = TypeIDKindEvent | GroupGate | 0x0001
	FrameEventTypeID    = TypeIDKindEvent | GroupFrame | 0x0001
)

// MessageTypes maps type IDs to messages.
var MessageTypes = map[uint32]Message{
	SequenceEventTypeID: (*SequenceEvent)(nil),
	GateEventTypeID:     (*GateEvent)(nil),
	FrameEventTypeID:    (*FrameEvent)(nil),
}

// UnknownTypeError indicates an unregistered type ID.
type UnknownTypeError struct {
	TypeID uint32
}

// Error implements error.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

// Typed wraps an encoded message with its type ID.
type Typed struct {
	TypeId  uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Message []byte `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

// ProtoMessage implements proto.Message.
func (p *Typed) ProtoMessage() {}

// Reset implements proto.Message.
func (p *Typed) Reset() { *p = Typed{} }

// String implements proto.Message.
func (p *Typed) String() string { return proto.CompactTextString(p) }

// TypedFrom wraps a message.
func TypedFrom(msg Message) (*Typed, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Typed{TypeId: msg.TypeID(), Message: data}, nil
}

// Encode encodes the envelope.
func (p *Typed) Encode() ([]byte, error) {
	return proto.Marshal(p)
}

// Decode decodes the wrapped message.
func (p *Typed) Decode() (Message, error) {
	msgType, ok := MessageTypes[p.TypeId]
	if !ok {
		return nil, &UnknownTypeError{TypeID: p.TypeId}
	}
	msg := msgType.NewMessage()
	if err := proto.Unmarshal(p.Message, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode wraps and encodes a message in one step.
func Encode(msg Message) ([]byte, error) {
	typed, err := TypedFrom(msg)
	if err != nil {
		return nil, err
	}
	return typed.Encode()
}

// DecodeTyped decodes an envelope.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	return &typed, nil
}

// Decode decodes an envelope and the message inside.
func Decode(data []byte) (Message, error) {
	typed, err := DecodeTyped(data)
	if err != nil {
		return nil, err
	}
	return typed.Decode()
}
