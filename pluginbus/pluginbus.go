// Package pluginbus implements spec §4.11 (component C11): an ordered
// list of lifecycle observers, short-circuited by a sentinel-false
// return and fault-isolated against panics. It is grounded on
// cue/cuego's hook-style pattern of user-registered callbacks run around
// a fixed pipeline, generalized to this spec's eight named lifecycle
// events, and on the logging shape SPEC_FULL.md's AMBIENT STACK assigns
// to `go.uber.org/zap` ("diagnostics the engine produces about itself").
package pluginbus

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event enumerates the lifecycle points spec §4.11 fires, in pipeline
// order.
type Event string

const (
	BeforeProgramValidate Event = "beforeProgramValidate"
	AfterProgramValidate  Event = "afterProgramValidate"
	AfterScopeCreate      Event = "afterScopeCreate"
	BeforeScopeValidate   Event = "beforeScopeValidate"
	AfterScopeValidate    Event = "afterScopeValidate"
	BeforeFileParse       Event = "beforeFileParse"
	AfterFileParse        Event = "afterFileParse"
	AfterFileValidate     Event = "afterFileValidate"
)

// Payload is passed to every handler for one firing of an Event. Name is
// the scope/file pkgPath the event concerns, when applicable.
type Payload struct {
	Event         Event
	Name          string
	CorrelationID string
}

// Handler returns false to short-circuit remaining handlers for this
// event firing (spec §4.11: "returning a sentinel false value
// short-circuits the remaining plugins for that event").
type Handler func(Payload) bool

type registration struct {
	name    string
	handler Handler
}

// Bus is the ordered list of registered plugins, keyed by the events
// they subscribe to.
type Bus struct {
	logger   *zap.SugaredLogger
	handlers map[Event][]registration
	order    []string
}

// New creates an empty Bus. A nil logger installs zap's no-op logger so
// callers that don't care about plugin-bus internals aren't forced to
// wire one up.
func New(logger *zap.SugaredLogger) *Bus {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bus{logger: logger, handlers: map[Event][]registration{}}
}

// Register adds a named handler for an event, appended to the end of
// that event's ordered list (registration order is firing order, per
// spec §4.11 "user-ordered list").
func (b *Bus) Register(name string, event Event, h Handler) {
	b.handlers[event] = append(b.handlers[event], registration{name: name, handler: h})
	b.order = append(b.order, name)
}

// Unregister removes every handler a plugin previously registered,
// across all events.
func (b *Bus) Unregister(name string) {
	for ev, regs := range b.handlers {
		filtered := regs[:0:0]
		for _, r := range regs {
			if r.name != name {
				filtered = append(filtered, r)
			}
		}
		b.handlers[ev] = filtered
	}
}

// Emit fires every handler registered for event in registration order,
// passing a fresh correlation ID, stopping early on the first handler
// that returns false. A handler that panics is recovered, logged with
// the plugin name and event (spec §4.11: "A handler that throws is
// logged with the plugin name and event; the bus continues"), and
// treated as if it had returned true.
func (b *Bus) Emit(event Event, name string) {
	payload := Payload{Event: event, Name: name, CorrelationID: uuid.NewString()}
	for _, reg := range b.handlers[event] {
		if !b.invoke(reg, payload) {
			return
		}
	}
}

func (b *Bus) invoke(reg registration, payload Payload) (cont bool) {
	cont = true
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("plugin handler panicked",
				"plugin", reg.name, "event", payload.Event, "correlationId", payload.CorrelationID,
				"panic", fmt.Sprint(r))
			cont = true
		}
	}()
	return reg.handler(payload)
}
