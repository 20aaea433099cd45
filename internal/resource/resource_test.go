package resource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"foundation_site/internal/domain"
	"foundation_site/internal/storage"
)

type item struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Hits int64  `db:"hits" json:"hits"`
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGateway serves rows from memory. Select calls can be held with gate
// and failed with the errs script.
type fakeGateway struct {
	mu       sync.Mutex
	rows     []item
	errs     []error
	selects  atomic.Int32
	inserts  atomic.Int32
	started  chan struct{}
	gate     chan struct{}
	writeErr error
}

func (g *fakeGateway) Select(ctx context.Context, table string, q storage.Query, dest any) error {
	g.selects.Add(1)
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.gate != nil {
		<-g.gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return err
		}
	}
	out := make([]item, 0, len(g.rows))
	for _, r := range g.rows {
		matched := true
		for _, f := range q.Filters {
			if f.Column == "id" && f.Value != r.ID {
				matched = false
			}
		}
		if matched {
			out = append(out, r)
		}
	}
	*dest.(*[]item) = out
	return nil
}

func (g *fakeGateway) Insert(ctx context.Context, table string, values storage.Values) (string, error) {
	g.inserts.Add(1)
	if g.writeErr != nil {
		return "", g.writeErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := values["id"].(string)
	g.rows = append(g.rows, item{ID: id, Name: values["name"].(string)})
	return id, nil
}

func (g *fakeGateway) Update(ctx context.Context, table, id string, patch storage.Values) error {
	if g.writeErr != nil {
		return g.writeErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.rows {
		if g.rows[i].ID == id {
			g.rows[i].Name = patch["name"].(string)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (g *fakeGateway) Delete(ctx context.Context, table, id string) error {
	if g.writeErr != nil {
		return g.writeErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.rows {
		if g.rows[i].ID == id {
			g.rows = append(g.rows[:i], g.rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (g *fakeGateway) Increment(ctx context.Context, table, id, column string, by int) (int64, error) {
	if g.writeErr != nil {
		return 0, g.writeErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.rows {
		if g.rows[i].ID == id {
			g.rows[i].Hits += int64(by)
			return g.rows[i].Hits, nil
		}
	}
	return 0, domain.ErrNotFound
}

type ResourceTestSuite struct {
	suite.Suite
	ctx     context.Context
	clock   *fakeClock
	cache   *Cache
	gateway *fakeGateway
	sleeps  []time.Duration
	res     *Resource[item]
}

func (s *ResourceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.cache = NewCache(DefaultTTL, s.clock)
	s.gateway = &fakeGateway{rows: []item{{ID: "1", Name: "one"}}}
	s.sleeps = nil

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.res = New[item]("items", s.gateway, s.cache, logger, WithSleep(func(ctx context.Context, d time.Duration) error {
		s.sleeps = append(s.sleeps, d)
		return nil
	}))
}

func TestResourceTestSuite(t *testing.T) {
	suite.Run(t, new(ResourceTestSuite))
}

func (s *ResourceTestSuite) TestList_ConcurrentReadsShareOneFetch() {
	s.gateway.started = make(chan struct{}, 1)
	s.gateway.gate = make(chan struct{})

	const readers = 10
	results := make([][]item, readers)
	errs := make([]error, readers)

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.res.List(s.ctx, storage.Query{})
		}(i)
	}

	<-s.gateway.started
	s.Equal(StatePending, s.cache.State("items", storage.Query{}))
	time.Sleep(50 * time.Millisecond)
	close(s.gateway.gate)
	wg.Wait()

	s.Equal(int32(1), s.gateway.selects.Load())
	for i := 0; i < readers; i++ {
		s.NoError(errs[i])
		s.Equal([]item{{ID: "1", Name: "one"}}, results[i])
	}
}

func (s *ResourceTestSuite) TestList_ServedFromCacheWithinTTL() {
	_, err := s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)

	s.clock.Advance(4 * time.Minute)
	_, err = s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)

	s.Equal(int32(1), s.gateway.selects.Load())
	s.Equal(StateFresh, s.cache.State("items", storage.Query{}))
}

func (s *ResourceTestSuite) TestList_RefetchesAfterTTL() {
	_, err := s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)

	s.clock.Advance(DefaultTTL + time.Second)
	s.Equal(StateStale, s.cache.State("items", storage.Query{}))

	_, err = s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)

	s.Equal(int32(2), s.gateway.selects.Load())
}

func (s *ResourceTestSuite) TestList_KeysIncludeQuery() {
	_, err := s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)
	_, err = s.res.List(s.ctx, storage.Query{}.Page(10, 10))
	s.Require().NoError(err)
	_, err = s.res.List(s.ctx, storage.Query{}.Where("id", "1"))
	s.Require().NoError(err)

	s.Equal(int32(3), s.gateway.selects.Load())
}

func (s *ResourceTestSuite) TestList_RetriesTransientFailures() {
	s.gateway.errs = []error{domain.ErrTransport, domain.ErrTransport}

	rows, err := s.res.List(s.ctx, storage.Query{})

	s.NoError(err)
	s.Equal([]item{{ID: "1", Name: "one"}}, rows)
	s.Equal(int32(3), s.gateway.selects.Load())
	s.Equal([]time.Duration{time.Second, 2 * time.Second}, s.sleeps)
}

func (s *ResourceTestSuite) TestList_EvictsAfterRetriesExhausted() {
	s.gateway.errs = []error{domain.ErrTransport, domain.ErrTransport, domain.ErrTransport, domain.ErrTransport}

	_, err := s.res.List(s.ctx, storage.Query{})

	s.True(errors.Is(err, domain.ErrTransport))
	s.Equal(int32(4), s.gateway.selects.Load())
	s.Equal([]time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, s.sleeps)
	s.Equal(StateEmpty, s.cache.State("items", storage.Query{}))

	rows, err := s.res.List(s.ctx, storage.Query{})
	s.NoError(err)
	s.Len(rows, 1)
}

func (s *ResourceTestSuite) TestList_DoesNotRetryPermanentFailures() {
	s.gateway.errs = []error{domain.ErrForbidden}

	_, err := s.res.List(s.ctx, storage.Query{})

	s.True(errors.Is(err, domain.ErrForbidden))
	s.Equal(int32(1), s.gateway.selects.Load())
	s.Empty(s.sleeps)
}

func (s *ResourceTestSuite) TestList_DoesNotRetryCancelled() {
	s.gateway.errs = []error{context.Canceled}

	_, err := s.res.List(s.ctx, storage.Query{})

	s.True(errors.Is(err, context.Canceled))
	s.Equal(int32(1), s.gateway.selects.Load())
}

func (s *ResourceTestSuite) TestList_CallerCancellationDoesNotPoisonCache() {
	s.gateway.started = make(chan struct{}, 1)
	s.gateway.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() {
		_, err := s.res.List(ctx, storage.Query{})
		done <- err
	}()

	<-s.gateway.started
	cancel()
	s.True(errors.Is(<-done, context.Canceled))

	close(s.gateway.gate)
	s.Eventually(func() bool {
		return s.cache.State("items", storage.Query{}) == StateFresh
	}, time.Second, 5*time.Millisecond)

	rows, err := s.res.List(s.ctx, storage.Query{})
	s.NoError(err)
	s.Len(rows, 1)
	s.Equal(int32(1), s.gateway.selects.Load())
}

func (s *ResourceTestSuite) TestList_StaleResponseDoesNotOverwriteAfterInvalidation() {
	s.gateway.started = make(chan struct{}, 1)
	s.gateway.gate = make(chan struct{})

	done := make(chan []item, 1)
	go func() {
		rows, _ := s.res.List(s.ctx, storage.Query{})
		done <- rows
	}()

	<-s.gateway.started
	s.res.Revalidate()
	close(s.gateway.gate)

	s.Len(<-done, 1)
	s.Equal(StateEmpty, s.cache.State("items", storage.Query{}))
}

func (s *ResourceTestSuite) TestMutations_Revalidate() {
	rows, err := s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)
	s.Len(rows, 1)

	_, err = s.res.Create(s.ctx, storage.Values{"id": "2", "name": "two"})
	s.Require().NoError(err)

	rows, err = s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)
	s.Len(rows, 2)

	s.Require().NoError(s.res.Update(s.ctx, "2", storage.Values{"name": "deux"}))
	got, err := s.res.Get(s.ctx, "2")
	s.Require().NoError(err)
	s.Equal("deux", got.Name)

	s.Require().NoError(s.res.Remove(s.ctx, "2"))
	_, err = s.res.Get(s.ctx, "2")
	s.True(errors.Is(err, domain.ErrNotFound))

	rows, err = s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *ResourceTestSuite) TestMutations_FailureKeepsCache() {
	_, err := s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)

	s.gateway.writeErr = domain.ErrConstraint
	_, err = s.res.Create(s.ctx, storage.Values{"id": "2", "name": "two"})
	s.True(errors.Is(err, domain.ErrConstraint))
	s.True(errors.Is(s.res.Update(s.ctx, "1", storage.Values{"name": "x"}), domain.ErrConstraint))
	s.True(errors.Is(s.res.Remove(s.ctx, "1"), domain.ErrConstraint))

	s.Equal(StateFresh, s.cache.State("items", storage.Query{}))
	_, err = s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)
	s.Equal(int32(1), s.gateway.selects.Load())
}

func (s *ResourceTestSuite) TestIncrement_DropsOnlyTheRowEntry() {
	_, err := s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)
	got, err := s.res.Get(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(int64(0), got.Hits)

	hits, err := s.res.Increment(s.ctx, "1", "hits", 1)
	s.Require().NoError(err)
	s.Equal(int64(1), hits)

	s.Equal(StateFresh, s.cache.State("items", storage.Query{}))
	s.Equal(StateEmpty, s.cache.State("items", storage.Query{}.Where("id", "1").Page(1, 0)))

	got, err = s.res.Get(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Hits)
}

func (s *ResourceTestSuite) TestIncrement_ConcurrentCallsAllCount() {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.res.Increment(s.ctx, "1", "hits", 1)
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.res.Get(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(int64(20), got.Hits)
}

func (s *ResourceTestSuite) TestCreate_RejectsNonRecordBeforeNetwork() {
	_, err := s.res.Create(s.ctx, nil)
	s.True(errors.Is(err, domain.ErrValidation))

	_, err = s.res.Create(s.ctx, storage.Values{"Bad Key": 1})
	s.True(errors.Is(err, domain.ErrValidation))

	s.Equal(int32(0), s.gateway.inserts.Load())
}

func (s *ResourceTestSuite) TestSweep() {
	_, err := s.res.List(s.ctx, storage.Query{})
	s.Require().NoError(err)
	s.Equal(0, s.cache.Sweep())

	s.clock.Advance(DefaultTTL)
	s.Equal(1, s.cache.Sweep())
	s.Equal(0, s.cache.Len())
}

func (s *ResourceTestSuite) TestRetryPolicy_Backoff() {
	p := DefaultRetryPolicy()
	s.Equal(time.Second, p.Backoff(1))
	s.Equal(2*time.Second, p.Backoff(2))
	s.Equal(4*time.Second, p.Backoff(3))
	s.Equal(8*time.Second, p.Backoff(4))
	s.Equal(10*time.Second, p.Backoff(5))
	s.Equal(10*time.Second, p.Backoff(40))
}
