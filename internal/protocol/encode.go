package protocol

import (
	"encoding/json"

	"github.com/danmuck/wxdash/internal/protocol/frame"
)

type stationListWire struct {
	Kind Kind `json:"kind"`
}

type weatherDataWire struct {
	Kind       Kind  `json:"kind"`
	StationIDs []int `json:"stationIds"`
}

// MarshalRequest returns the JSON payload for req without the length prefix.
// Requests always carry the discriminant as "kind"; the legacy "id" key is
// only accepted on decode.
func MarshalRequest(req Request) ([]byte, error) {
	var v any
	switch req.Kind {
	case KindStationList:
		v = stationListWire{Kind: req.Kind}
	case KindWeatherData:
		ids := req.StationIDs
		if ids == nil {
			ids = []int{}
		}
		v = weatherDataWire{Kind: req.Kind, StationIDs: ids}
	default:
		return nil, &EncodingError{Kind: req.Kind, Err: ErrUnsupportedKind}
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodingError{Kind: req.Kind, Err: err}
	}
	return payload, nil
}

// EncodeRequest serializes req and wraps it in a frame. Payloads longer than
// frame.MaxPayloadLen fail with an *EncodingError.
func EncodeRequest(req Request) ([]byte, error) {
	payload, err := MarshalRequest(req)
	if err != nil {
		return nil, err
	}
	out, err := frame.Encode(payload)
	if err != nil {
		return nil, &EncodingError{Kind: req.Kind, Err: err}
	}
	return out, nil
}
