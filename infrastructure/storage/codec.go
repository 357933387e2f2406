package storage

import (
	"chat-presence/contract"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// encodeRecord serializes a record as a protobuf Struct.
// Numbers come back as float64, contract.Record.Int absorbs the difference.
func encodeRecord(r contract.Record) ([]byte, error) {
	s, err := structpb.NewStruct(r)
	if err != nil {
		return nil, fmt.Errorf("failed to convert record: %w", err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (contract.Record, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return s.AsMap(), nil
}
