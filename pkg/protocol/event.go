package protocol

import "strings"

// Event is a DOM event captured by the client.
//
// Wire format:
//
//	[seq][target][type][value][detail]
type Event struct {
	// Seq increases by one per event within a connection.
	Seq uint64

	// Target is the document id of the node the event fired on.
	Target uint64

	Type string

	// Value is the control value for input, change and submit events.
	Value string

	// Detail carries event-specific data, such as the key of a keydown.
	Detail Value
}

// EncodeEvent encodes an event.
func EncodeEvent(ev *Event) []byte {
	e := NewEncoder()
	e.WriteUvarint(ev.Seq)
	e.WriteUvarint(ev.Target)
	e.WriteString(ev.Type)
	e.WriteString(ev.Value)
	e.writeValue(ev.Detail)
	return e.Bytes()
}

// DecodeEvent decodes an event. Event types are lower-cased.
func DecodeEvent(data []byte) (*Event, error) {
	d := NewDecoder(data)
	ev := &Event{}
	var err error
	if ev.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if ev.Target, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if ev.Type, err = d.ReadString(); err != nil {
		return nil, err
	}
	ev.Type = strings.ToLower(ev.Type)
	if ev.Value, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ev.Detail, err = d.readValue(); err != nil {
		return nil, err
	}
	return ev, d.finish()
}
