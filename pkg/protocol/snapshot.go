package protocol

// Snapshot is the full document sent when a client attaches. Mutation
// batches that follow continue from Seq.
//
// Wire format:
//
//	[seq][session][root node]
type Snapshot struct {
	Seq     uint64
	Session string
	Root    *Node
}

// EncodeSnapshot encodes a snapshot.
func EncodeSnapshot(s *Snapshot) []byte {
	e := NewEncoder()
	e.WriteUvarint(s.Seq)
	e.WriteString(s.Session)
	e.writeNode(s.Root)
	return e.Bytes()
}

// DecodeSnapshot decodes a snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	d := NewDecoder(data)
	s := &Snapshot{}
	var err error
	if s.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if s.Session, err = d.ReadString(); err != nil {
		return nil, err
	}
	if s.Root, err = d.readNode(0); err != nil {
		return nil, err
	}
	return s, d.finish()
}
