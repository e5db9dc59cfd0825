package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/danmuck/wxdash/internal/protocol/frame"
)

type envelope struct {
	Kind json.RawMessage `json:"kind"`
	ID   json.RawMessage `json:"id"`
}

type stationListBody struct {
	Stations []StationInfo `json:"stations"`
}

type weatherDataBody struct {
	StationID   int             `json:"stationId"`
	Temperature float64         `json:"temperature"`
	Humidity    float64         `json:"humidity"`
	Time        json.RawMessage `json:"time"`
}

type requestBody struct {
	StationIDs []int `json:"stationIds"`
}

// DecodeFrame unwraps one frame and decodes its payload. Bytes after the
// declared length are not interpreted.
func DecodeFrame(b []byte) (Message, error) {
	payload, _, err := frame.Decode(b)
	if err != nil {
		return nil, &DecodingError{Err: err}
	}
	return DecodePayload(payload)
}

// DecodePayload decodes one JSON response payload. Well-formed messages with
// an unrecognised integer discriminant decode to Unknown with a nil error.
func DecodePayload(payload []byte) (Message, error) {
	kind, err := readKind(payload)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindStationList:
		var body stationListBody
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, decodeErr(ErrMalformedPayload, err)
		}
		if body.Stations == nil {
			body.Stations = []StationInfo{}
		}
		return StationList{Stations: body.Stations}, nil
	case KindWeatherData:
		var body weatherDataBody
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, decodeErr(ErrMalformedPayload, err)
		}
		ts, err := readTime(body.Time)
		if err != nil {
			return nil, err
		}
		return WeatherData{Reading: WeatherReading{
			StationID:   body.StationID,
			Temperature: body.Temperature,
			Humidity:    body.Humidity,
			Time:        ts,
		}}, nil
	default:
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return Unknown{Code: kind, Raw: raw}, nil
	}
}

// DecodeRequest is the receiving-side inverse of MarshalRequest.
func DecodeRequest(payload []byte) (Request, error) {
	kind, err := readKind(payload)
	if err != nil {
		return Request{}, err
	}
	switch kind {
	case KindStationList:
		return Request{Kind: kind}, nil
	case KindWeatherData:
		var body requestBody
		if err := json.Unmarshal(payload, &body); err != nil {
			return Request{}, decodeErr(ErrMalformedPayload, err)
		}
		if body.StationIDs == nil {
			body.StationIDs = []int{}
		}
		return Request{Kind: kind, StationIDs: body.StationIDs}, nil
	default:
		return Request{}, decodeErr(ErrUnsupportedKind, nil)
	}
}

// readKind prefers "kind" and falls back to the legacy "id" key.
func readKind(payload []byte) (Kind, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return 0, decodeErr(ErrMalformedPayload, err)
	}
	raw := env.Kind
	if isAbsent(raw) {
		raw = env.ID
	}
	if isAbsent(raw) {
		return 0, decodeErr(ErrMissingKind, nil)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, decodeErr(ErrInvalidKind, err)
	}
	return Kind(n), nil
}

// readTime accepts the string form and the numeric unix-seconds form some
// stations report.
func readTime(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", decodeErr(ErrMalformedPayload, err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return "", decodeErr(ErrMalformedPayload, err)
	}
	return n.String(), nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
