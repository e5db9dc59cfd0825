package protocol

import "strconv"

// Kind is the integer discriminant carried by every message.
type Kind int

const (
	KindWeatherData Kind = 0
	KindStationList Kind = 1
)

func (k Kind) Known() bool {
	return k == KindWeatherData || k == KindStationList
}

func (k Kind) String() string {
	switch k {
	case KindWeatherData:
		return "weather_data"
	case KindStationList:
		return "station_list"
	default:
		return "kind_" + strconv.Itoa(int(k))
	}
}

// Request is the client->server message. StationIDs is only sent for
// KindWeatherData.
type Request struct {
	Kind       Kind
	StationIDs []int
}

func StationListRequest() Request {
	return Request{Kind: KindStationList}
}

func WeatherDataRequest(ids []int) Request {
	out := make([]int, len(ids))
	copy(out, ids)
	return Request{Kind: KindWeatherData, StationIDs: out}
}

// StationInfo is one entry of a station-list response.
type StationInfo struct {
	StationID   int    `json:"stationId"`
	StationName string `json:"stationName"`
}

// WeatherReading is the body of a weather-data response.
type WeatherReading struct {
	StationID   int     `json:"stationId"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Time        string  `json:"time"`
}

// Message is a decoded server->client message. The set of variants is closed:
// StationList, WeatherData, Unknown.
type Message interface {
	Kind() Kind
	isMessage()
}

type StationList struct {
	Stations []StationInfo
}

func (StationList) Kind() Kind { return KindStationList }
func (StationList) isMessage() {}

type WeatherData struct {
	Reading WeatherReading
}

func (WeatherData) Kind() Kind { return KindWeatherData }
func (WeatherData) isMessage() {}

// Unknown carries a well-formed message whose discriminant this client does
// not handle. Receivers ignore it.
type Unknown struct {
	Code Kind
	Raw  []byte
}

func (u Unknown) Kind() Kind { return u.Code }
func (Unknown) isMessage()   {}
