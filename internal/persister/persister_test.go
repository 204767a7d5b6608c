package persister_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/mimic/internal/adapters/repository"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/internal/persister"
	"github.com/okian/mimic/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var errDiskFull = errors.New("disk full")

// flakyStore is an in-memory Store whose next failures appends fail.
type flakyStore struct {
	mu       sync.Mutex
	events   []model.Event
	failures int
	appends  int
	resets   int
	loaded   bool
}

func (s *flakyStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.events = nil
	s.loaded = true
	return nil
}

func (s *flakyStore) Append(_ context.Context, b model.Batch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.failures > 0 {
		s.failures--
		return 0, errors.Join(repository.ErrWrite, errDiskFull)
	}
	s.events = append(s.events, b.Events...)
	s.loaded = true
	return len(s.events), nil
}

func (s *flakyStore) Load(context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, repository.ErrNotFound
	}
	return append([]model.Event(nil), s.events...), nil
}

func (s *flakyStore) Close() error { return nil }

func (s *flakyStore) stats() (appends, stored int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends, len(s.events)
}

func moves(from, n int) []model.Event {
	out := make([]model.Event, n)
	for i := range out {
		id := int64(from + i)
		out[i] = model.Event{ID: id, Kind: model.PointerMoved, X: int(id), Y: int(id), ElapsedMS: id * 10}
	}
	return out
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestPersisterOrdering(t *testing.T) {
	Convey("Given a running persister over a file store", t, func() {
		ctx := context.Background()
		store := repository.NewFileStore(filepath.Join(t.TempDir(), "events.bin"))
		p := persister.New(store)
		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop() //nolint:errcheck // best-effort cleanup

		Convey("When two batches are scheduled back to back", func() {
			b1 := model.Batch{Session: "s1", Events: moves(0, 3)}
			b2 := model.Batch{Session: "s1", Events: moves(3, 4)}
			p.Schedule(b1)
			p.Schedule(b2)

			Convey("Then the stored sequence is B1 followed by B2", func() {
				So(eventually(func() bool { return p.Pending() == 0 }), ShouldBeTrue)
				So(p.Flush(ctx), ShouldBeNil)

				events, err := p.Deserialize(ctx)
				So(err, ShouldBeNil)
				So(events, ShouldResemble, append(moves(0, 3), moves(3, 4)...))
			})
		})

		Convey("When an empty batch is scheduled", func() {
			p.Schedule(model.Batch{Session: "s1"})

			Convey("Then nothing is queued or written", func() {
				So(p.Pending(), ShouldEqual, 0)
				events, err := p.Deserialize(ctx)
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)
			})
		})
	})
}

func TestPersisterStartup(t *testing.T) {
	Convey("Given a store holding a previous recording", t, func() {
		ctx := context.Background()
		store := &flakyStore{}
		_, err := store.Append(ctx, model.Batch{Events: moves(0, 5)})
		So(err, ShouldBeNil)
		p := persister.New(store)

		Convey("When the persister starts", func() {
			So(p.Start(ctx), ShouldBeNil)
			defer p.Stop() //nolint:errcheck // best-effort cleanup

			Convey("Then the stale content is discarded", func() {
				events, err := p.Deserialize(ctx)
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)
				So(store.resets, ShouldEqual, 1)
			})

			Convey("And starting again while running does not reset twice", func() {
				So(p.Start(ctx), ShouldBeNil)
				So(store.resets, ShouldEqual, 1)
			})
		})
	})
}

func TestPersisterWriteFailure(t *testing.T) {
	Convey("Given a persister whose store fails the first writes", t, func() {
		ctx := context.Background()
		store := &flakyStore{failures: 2}
		p := persister.New(store, persister.WithRetryBackoff(5*time.Millisecond, 20*time.Millisecond))
		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop() //nolint:errcheck // best-effort cleanup

		Convey("When a batch is scheduled", func() {
			p.Schedule(model.Batch{Session: "s1", Events: moves(0, 4)})

			Convey("Then it is retried until it is durable", func() {
				So(eventually(func() bool {
					_, stored := store.stats()
					return stored == 4
				}), ShouldBeTrue)
				appends, _ := store.stats()
				So(appends, ShouldBeGreaterThanOrEqualTo, 3)
				So(p.Pending(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a stopped persister whose store rejects writes", t, func() {
		ctx := context.Background()
		store := &flakyStore{failures: 1}
		p := persister.New(store)

		Convey("When Flush runs with batches queued", func() {
			p.Schedule(model.Batch{Session: "s1", Events: moves(0, 2)})
			p.Schedule(model.Batch{Session: "s2", Events: moves(2, 2)})
			err := p.Flush(ctx)

			Convey("Then the write error reaches the caller", func() {
				So(errors.Is(err, repository.ErrWrite), ShouldBeTrue)
				So(errors.Is(err, errDiskFull), ShouldBeTrue)
			})

			Convey("And the batches stay queued in order for the next flush", func() {
				So(p.Pending(), ShouldEqual, 2)
				So(p.Flush(ctx), ShouldBeNil)
				events, err := p.Deserialize(ctx)
				So(err, ShouldBeNil)
				So(events, ShouldResemble, moves(0, 4))
			})
		})
	})
}

func TestPersisterDeserialize(t *testing.T) {
	Convey("Given a persister over a file store that was never written", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "events.bin")
		p := persister.New(repository.NewFileStore(path))

		Convey("When the sequence is read", func() {
			_, err := p.Deserialize(ctx)

			Convey("Then it reports the store as missing, not corrupt", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(err, repository.ErrCorrupt), ShouldBeFalse)
			})
		})
	})

	Convey("Given reads racing with a running writer", t, func() {
		ctx := context.Background()
		store := repository.NewFileStore(filepath.Join(t.TempDir(), "events.bin"))
		p := persister.New(store)
		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop() //nolint:errcheck // best-effort cleanup

		Convey("Then every read observes a whole, valid sequence", func() {
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 20 {
					p.Schedule(model.Batch{Session: "s1", Events: moves(i*5, 5)})
				}
			}()

			failures := 0
			for range 20 {
				if _, err := p.Deserialize(ctx); err != nil {
					failures++
				}
			}
			wg.Wait()
			So(failures, ShouldEqual, 0)

			So(p.Flush(ctx), ShouldBeNil)
			events, err := p.Deserialize(ctx)
			So(err, ShouldBeNil)
			So(events, ShouldResemble, moves(0, 100))
		})
	})
}
