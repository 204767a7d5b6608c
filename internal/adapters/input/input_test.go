package input

import (
	"context"
	"testing"
	"time"

	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type handlerProbe struct {
	moves   int
	presses int
	release int
}

func (h *handlerProbe) OnPointerMove(int, int) { h.moves++ }
func (h *handlerProbe) OnButtonChange(_ model.Side, pressed bool, _, _ int) {
	if pressed {
		h.presses++
	} else {
		h.release++
	}
}
func (h *handlerProbe) OnKeyPress(string) {}

func TestScript(t *testing.T) {
	Convey("Given a scripted click", t, func() {
		script := Script{
			{Kind: model.PointerMoved, X: 1, Y: 1},
			{Kind: model.ButtonPressed, Side: model.SideLeft, X: 1, Y: 1},
			{Kind: model.ButtonReleased, Side: model.SideLeft, X: 1, Y: 1},
		}
		h := &handlerProbe{}

		Convey("When it runs", func() {
			err := script.Run(context.Background(), h)

			Convey("Then every callback is delivered", func() {
				So(err, ShouldBeNil)
				So(h.moves, ShouldEqual, 1)
				So(h.presses, ShouldEqual, 1)
				So(h.release, ShouldEqual, 1)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			Convey("Then nothing is delivered", func() {
				So(script.Run(ctx, h), ShouldEqual, context.Canceled)
				So(h.moves, ShouldEqual, 0)
			})
		})
	})
}

func TestNopSource(t *testing.T) {
	Convey("Given the no-op source", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		Convey("Then it returns cleanly once the context ends", func() {
			So(NopSource{Logger: logger.Get()}.Run(ctx, &handlerProbe{}), ShouldBeNil)
		})
	})
}

func TestSinks(t *testing.T) {
	Convey("Given a recording sink", t, func() {
		s := &RecordingSink{}
		So(s.SetPosition(3, 4), ShouldBeNil)
		So(s.Press(model.SideRight), ShouldBeNil)
		So(s.Release(model.SideRight), ShouldBeNil)

		Convey("Then it keeps the calls in order", func() {
			So(s.Actions(), ShouldResemble, []Action{
				{Op: "move", X: 3, Y: 4},
				{Op: "press", Side: model.SideRight},
				{Op: "release", Side: model.SideRight},
			})
		})
	})

	Convey("Given a log sink", t, func() {
		s := NewLogSink(nil)

		Convey("Then it accepts every action", func() {
			So(s.SetPosition(0, 0), ShouldBeNil)
			So(s.Press(model.SideMiddle), ShouldBeNil)
			So(s.Release(model.SideMiddle), ShouldBeNil)
		})
	})
}
