// Package dispatch builds outbound telemetry requests and drives the
// periodic weather refresh.
package dispatch

import (
	"context"

	logs "github.com/danmuck/wxdash/internal/logging"
	"github.com/danmuck/wxdash/internal/observability"
	"github.com/danmuck/wxdash/internal/protocol"
)

// Sender transmits one framed request.
type Sender interface {
	Send(ctx context.Context, b []byte) error
}

// StationSource resolves which stations a periodic refresh asks for.
type StationSource interface {
	ActiveStationIDs() []int
}

type Dispatcher struct {
	sender Sender
}

func New(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// RequestStationList sends {kind:1}.
func (d *Dispatcher) RequestStationList(ctx context.Context) error {
	return d.send(ctx, protocol.StationListRequest())
}

// RequestWeatherData sends {kind:0, stationIds: ids}. An empty ids slice is
// still sent.
func (d *Dispatcher) RequestWeatherData(ctx context.Context, ids []int) error {
	return d.send(ctx, protocol.WeatherDataRequest(ids))
}

func (d *Dispatcher) send(ctx context.Context, req protocol.Request) error {
	kind := req.Kind.String()
	b, err := protocol.EncodeRequest(req)
	if err != nil {
		observability.RecordRequest(kind, "encode_error")
		logs.Errf("dispatch.Dispatcher.send encode kind=%s err=%v", kind, err)
		return err
	}
	if err := d.sender.Send(ctx, b); err != nil {
		observability.RecordRequest(kind, "send_error")
		logs.Warnf("dispatch.Dispatcher.send kind=%s stations=%d err=%v", kind, len(req.StationIDs), err)
		return err
	}
	observability.RecordRequest(kind, "sent")
	logs.Debugf("dispatch.Dispatcher.send kind=%s stations=%d bytes=%d", kind, len(req.StationIDs), len(b))
	return nil
}
