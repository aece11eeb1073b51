package depgraph_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/scriptcore/bsc/depgraph"
)

func TestTransitiveNotification(t *testing.T) {
	g := depgraph.New()
	g.AddOrReplace("a", []string{"b"})
	g.AddOrReplace("b", []string{"c"})

	var notified []string
	g.Subscribe("a", func(key string) { notified = append(notified, "a<-"+key) })
	g.Subscribe("b", func(key string) { notified = append(notified, "b<-"+key) })

	g.AddOrReplace("c", nil)

	qt.Assert(t, qt.Contains(notified, "a<-a"))
	qt.Assert(t, qt.Contains(notified, "b<-b"))
}

func TestUnsubscribeStopsNotification(t *testing.T) {
	g := depgraph.New()
	g.AddOrReplace("a", []string{"b"})
	count := 0
	unsub := g.Subscribe("a", func(string) { count++ })
	g.AddOrReplace("b", nil)
	unsub()
	g.AddOrReplace("b", nil)
	qt.Assert(t, qt.Equals(count, 1))
}

func TestDedupedPerPublish(t *testing.T) {
	g := depgraph.New()
	// diamond: a depends on b and c, both depend on d
	g.AddOrReplace("a", []string{"b", "c"})
	g.AddOrReplace("b", []string{"d"})
	g.AddOrReplace("c", []string{"d"})
	calls := 0
	g.Subscribe("a", func(string) { calls++ })
	g.AddOrReplace("d", nil)
	qt.Assert(t, qt.Equals(calls, 1))
}

func TestRemoveFiresListeners(t *testing.T) {
	g := depgraph.New()
	g.AddOrReplace("a", []string{"b"})
	fired := false
	g.Subscribe("a", func(string) { fired = true })
	g.Remove("b")
	qt.Assert(t, qt.IsTrue(fired))
}
