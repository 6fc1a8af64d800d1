package dispatch

import "github.com/golang/protobuf/proto"

// Marshal encodes a frame to its protobuf wire form for broker publication.
// golang/protobuf's legacy Marshal still accepts the bare Reset/String/
// ProtoMessage contract the frame types above implement, without requiring
// generated descriptor metadata.
func Marshal(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}
