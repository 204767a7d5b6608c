package model_test

import (
	"testing"

	model "github.com/okian/mimic/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestEventValidate(t *testing.T) {
	convey.Convey("Given events of every shape", t, func() {
		convey.Convey("When the event is a plain move", func() {
			e := model.Event{Kind: model.PointerMoved, X: 10, Y: -4, ElapsedMS: 12}

			convey.Convey("Then it is valid and not a button event", func() {
				convey.So(e.Validate(), convey.ShouldBeNil)
				convey.So(e.IsButton(), convey.ShouldBeFalse)
				convey.So(e.String(), convey.ShouldContainSubstring, "pointer_moved to (10,-4)")
			})
		})

		convey.Convey("When a button event names its side", func() {
			e := model.Event{Kind: model.ButtonPressed, Side: model.SideRight}

			convey.Convey("Then it is valid", func() {
				convey.So(e.Validate(), convey.ShouldBeNil)
				convey.So(e.IsButton(), convey.ShouldBeTrue)
				convey.So(e.String(), convey.ShouldContainSubstring, "right button_pressed")
			})
		})

		convey.Convey("When the event is inconsistent", func() {
			cases := []model.Event{
				{Kind: model.ButtonReleased},
				{Kind: model.PointerMoved, Side: model.SideLeft},
				{Kind: model.Kind(9)},
				{Kind: model.ButtonPressed, Side: model.Side(7)},
				{Kind: model.PointerMoved, ElapsedMS: -1},
			}

			convey.Convey("Then each is rejected", func() {
				for _, e := range cases {
					convey.So(e.Validate(), convey.ShouldNotBeNil)
				}
			})
		})
	})
}

func TestParseSide(t *testing.T) {
	convey.Convey("Given button names", t, func() {
		side, err := model.ParseSide(" Left ")
		convey.So(err, convey.ShouldBeNil)
		convey.So(side, convey.ShouldEqual, model.SideLeft)

		side, err = model.ParseSide("middle")
		convey.So(err, convey.ShouldBeNil)
		convey.So(side, convey.ShouldEqual, model.SideMiddle)

		_, err = model.ParseSide("x1")
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestBatch(t *testing.T) {
	convey.Convey("Given a batch", t, func() {
		b := model.Batch{Session: "s", Events: make([]model.Event, 3)}
		convey.So(b.Len(), convey.ShouldEqual, 3)
		convey.So(model.Batch{}.Len(), convey.ShouldEqual, 0)
		convey.So(model.Kind(5).String(), convey.ShouldEqual, "kind(5)")
	})
}
