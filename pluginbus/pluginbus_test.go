package pluginbus_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/pluginbus"
)

func TestHandlersFireInOrder(t *testing.T) {
	b := pluginbus.New(nil)
	var order []string
	b.Register("first", pluginbus.AfterFileParse, func(pluginbus.Payload) bool {
		order = append(order, "first")
		return true
	})
	b.Register("second", pluginbus.AfterFileParse, func(pluginbus.Payload) bool {
		order = append(order, "second")
		return true
	})
	b.Emit(pluginbus.AfterFileParse, "main.bs")
	qt.Assert(t, qt.DeepEquals(order, []string{"first", "second"}))
}

func TestShortCircuitOnFalse(t *testing.T) {
	b := pluginbus.New(nil)
	var called bool
	b.Register("blocker", pluginbus.AfterFileParse, func(pluginbus.Payload) bool { return false })
	b.Register("never", pluginbus.AfterFileParse, func(pluginbus.Payload) bool {
		called = true
		return true
	})
	b.Emit(pluginbus.AfterFileParse, "main.bs")
	qt.Assert(t, qt.IsFalse(called))
}

func TestPanicIsIsolated(t *testing.T) {
	b := pluginbus.New(nil)
	var reached bool
	b.Register("bad", pluginbus.AfterFileParse, func(pluginbus.Payload) bool { panic("boom") })
	b.Register("good", pluginbus.AfterFileParse, func(pluginbus.Payload) bool {
		reached = true
		return true
	})
	b.Emit(pluginbus.AfterFileParse, "main.bs")
	qt.Assert(t, qt.IsTrue(reached))
}

func TestUnregisterRemovesAllEvents(t *testing.T) {
	b := pluginbus.New(nil)
	var called bool
	b.Register("p", pluginbus.BeforeFileParse, func(pluginbus.Payload) bool {
		called = true
		return true
	})
	b.Unregister("p")
	b.Emit(pluginbus.BeforeFileParse, "main.bs")
	qt.Assert(t, qt.IsFalse(called))
}
