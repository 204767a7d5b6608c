package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/okian/mimic/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type batchLog struct {
	mu      sync.Mutex
	batches []model.Batch
}

func (l *batchLog) Schedule(b model.Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, b)
}

func (l *batchLog) all() []model.Batch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Batch(nil), l.batches...)
}

func TestSessionHandoff(t *testing.T) {
	Convey("Given a session whose closing flush has not run yet", t, func() {
		log := &batchLog{}
		r := New(log, WithFlushInterval(time.Hour))
		r.open()
		first := r.SessionID()
		So(r.Append(model.Event{Kind: model.PointerMoved, X: 1}), ShouldBeNil)
		So(r.Append(model.Event{Kind: model.PointerMoved, X: 2}), ShouldBeNil)

		Convey("When a new session opens and the old closing flush runs late", func() {
			r.open()
			second := r.SessionID()
			So(r.Append(model.Event{Kind: model.PointerMoved, X: 3}), ShouldBeNil)
			r.flush(first)

			Convey("Then each batch carries only its own session's events", func() {
				So(second, ShouldNotEqual, first)
				batches := log.all()
				So(batches, ShouldHaveLength, 2)
				So(batches[0].Session, ShouldEqual, first)
				So(batches[0].Events, ShouldHaveLength, 2)
				So(batches[1].Session, ShouldEqual, second)
				So(batches[1].Events, ShouldHaveLength, 1)
				So(batches[1].Events[0].X, ShouldEqual, 3)
			})

			Convey("And the new session stays open", func() {
				So(r.Append(model.Event{Kind: model.PointerMoved}), ShouldBeNil)
			})
		})

		Convey("When the closing flush runs for its own session", func() {
			r.flush(first)

			Convey("Then the session is closed", func() {
				So(log.all(), ShouldHaveLength, 1)
				So(r.Append(model.Event{Kind: model.PointerMoved}), ShouldEqual, ErrNoSession)
			})
		})
	})
}
