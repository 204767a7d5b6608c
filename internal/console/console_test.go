package console_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/console"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeController logs every call.
type fakeController struct {
	calls     []string
	replayErr error
	events    []model.Event
}

func (f *fakeController) StartRecording(context.Context) error {
	f.calls = append(f.calls, "start-recording")
	return nil
}

func (f *fakeController) StopRecording(context.Context) error {
	f.calls = append(f.calls, "stop-recording")
	return nil
}

func (f *fakeController) StartReplay(context.Context) error {
	f.calls = append(f.calls, "start-replay")
	return f.replayErr
}

func (f *fakeController) StopReplay() error {
	f.calls = append(f.calls, "stop-replay")
	return nil
}

func (f *fakeController) StartSampling() { f.calls = append(f.calls, "start-sampling") }

func (f *fakeController) StopSampling() error {
	f.calls = append(f.calls, "stop-sampling")
	return nil
}

func (f *fakeController) Events(context.Context) ([]model.Event, error) {
	f.calls = append(f.calls, "events")
	return f.events, nil
}

func (f *fakeController) Status() service.Status {
	return service.Status{Recording: true, Session: "abc", Buffered: 2}
}

func TestConsole(t *testing.T) {
	Convey("Given a console over a fake controller", t, func() {
		ctrl := &fakeController{events: []model.Event{{ID: 1, Kind: model.PointerMoved, X: 3, Y: 4}}}
		out := &bytes.Buffer{}

		Convey("When a session of commands is read", func() {
			in := strings.NewReader("s\nd\n  F \ng\nm\nn\np\nt\nx\n\nq\ns\n")
			err := console.New(ctrl, in, out).Run(context.Background())

			Convey("Then each command reaches the controller in order until quit", func() {
				So(err, ShouldBeNil)
				So(ctrl.calls, ShouldResemble, []string{
					"start-recording", "stop-recording", "start-replay", "stop-replay",
					"start-sampling", "stop-sampling", "events",
				})
			})

			Convey("And the output reports events, status and bad input", func() {
				text := out.String()
				So(text, ShouldContainSubstring, "1 events")
				So(text, ShouldContainSubstring, "recording=true")
				So(text, ShouldContainSubstring, "session=abc buffered=2")
				So(text, ShouldContainSubstring, "invalid command")
				So(text, ShouldContainSubstring, "exiting...")
			})
		})

		Convey("When a command fails", func() {
			ctrl.replayErr = errors.New("store missing")
			ok := console.New(ctrl, strings.NewReader(""), out).Execute(context.Background(), "f")

			Convey("Then the failure is printed and the console keeps going", func() {
				So(ok, ShouldBeTrue)
				So(out.String(), ShouldContainSubstring, "start replay failed: store missing")
			})
		})

		Convey("When input ends without quit", func() {
			err := console.New(ctrl, strings.NewReader("t\n"), out).Run(context.Background())

			Convey("Then Run returns cleanly", func() {
				So(err, ShouldBeNil)
				So(ctrl.calls, ShouldBeEmpty)
			})
		})

		Convey("When the context is cancelled while waiting for input", func() {
			pr, pw := io.Pipe()
			defer pw.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			Convey("Then Run returns", func() {
				So(console.New(ctrl, pr, out).Run(ctx), ShouldBeNil)
			})
		})
	})
}
