// Package osc receives avatar parameter updates over UDP OSC and
// publishes them as sensor events.
package osc

import (
	"context"
	"net"
	"strings"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/strayware/go-collar/internal/log"
	"github.com/strayware/go-collar/pkg/event"
)

// ParameterPrefix is the OSC address prefix VRChat uses for avatar
// parameter updates.
const ParameterPrefix = "/avatar/parameters/"

// TrainerPrefix marks parameters mirrored from the trainer's avatar via
// contact receivers. Everything else describes the local pet avatar.
const TrainerPrefix = "Trainer/"

// Receiver listens for OSC packets and turns parameter updates into
// SensorEvents on the bus. Addresses outside ParameterPrefix and
// argument types that are not bool, int or float are dropped.
type Receiver struct {
	addr string
	bus  *event.Bus
	now  func() time.Time
}

// NewReceiver builds a receiver publishing to bus.
func NewReceiver(addr string, bus *event.Bus) *Receiver {
	return &Receiver{addr: addr, bus: bus, now: time.Now}
}

// Run binds the UDP socket and serves until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", r.addr)
	if err != nil {
		return err
	}

	server := &goosc.Server{Addr: r.addr, Dispatcher: r}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log.Info("osc: listening", "addr", r.addr)
	err = server.Serve(conn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Dispatch implements goosc.Dispatcher.
func (r *Receiver) Dispatch(packet goosc.Packet) {
	switch p := packet.(type) {
	case *goosc.Message:
		r.handle(p)
	case *goosc.Bundle:
		for _, m := range p.Messages {
			r.handle(m)
		}
		for _, b := range p.Bundles {
			r.Dispatch(b)
		}
	}
}

func (r *Receiver) handle(msg *goosc.Message) {
	if !strings.HasPrefix(msg.Address, ParameterPrefix) {
		return
	}
	param := strings.TrimPrefix(msg.Address, ParameterPrefix)
	if param == "" || len(msg.Arguments) == 0 {
		return
	}

	ev := event.SensorEvent{
		Source:    RoleFor(param),
		Parameter: param,
		Timestamp: r.now(),
	}
	switch v := msg.Arguments[0].(type) {
	case bool:
		ev.Kind = event.BoolValue
		ev.Bool = v
	case float32:
		ev.Kind = event.FloatValue
		ev.Float = float64(v)
	case float64:
		ev.Kind = event.FloatValue
		ev.Float = v
	case int32:
		ev.Kind = event.FloatValue
		ev.Float = float64(v)
	case int64:
		ev.Kind = event.FloatValue
		ev.Float = float64(v)
	default:
		log.Debug("osc: unsupported argument type", "address", msg.Address)
		return
	}

	r.bus.Publish(ev)
}

// RoleFor maps a parameter name to the avatar it describes.
func RoleFor(param string) event.Role {
	if strings.HasPrefix(param, TrainerPrefix) {
		return event.RoleTrainer
	}
	return event.RolePet
}
