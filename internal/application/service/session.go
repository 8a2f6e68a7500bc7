package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
)

// SeriesFetcher produces the series for one set of parameters
type SeriesFetcher interface {
	Series(ctx context.Context, params entity.QueryParams) (*entity.Series, error)
}

// Ticket identifies one fetch started by a session
type Ticket struct {
	Seq    uint64
	Params entity.QueryParams
}

// Update is delivered to subscribers when the latest fetch completes.
// Series is the accepted series, or the previously accepted one when Err is set.
type Update struct {
	Ticket
	Series *entity.Series
	Err    error
}

// Session charts one client's parameter changes. Every change starts its own fetch;
// only the result of the most recently started fetch is applied and published.
type Session struct {
	id      string
	fetcher SeriesFetcher
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	seq atomic.Uint64

	mu          sync.RWMutex
	latest      *entity.Series
	latestSeq   uint64
	subscribers []func(Update)
}

// NewSession creates a session whose fetches stop when ctx is done or Close is called
func NewSession(ctx context.Context, fetcher SeriesFetcher, log logger.Logger) *Session {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	id := uuid.New().String()
	sessionCtx, cancel := context.WithCancel(ctx)

	return &Session{
		id:      id,
		fetcher: fetcher,
		logger:  log.WithField("session_id", id),
		ctx:     sessionCtx,
		cancel:  cancel,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers fn for every published update. fn runs while the session state is
// locked and must not call back into the session.
func (s *Session) Subscribe(fn func(Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

// Request starts a fetch for params and returns its ticket without waiting for it
func (s *Session) Request(params entity.QueryParams) Ticket {
	ticket := Ticket{Seq: s.seq.Add(1), Params: params}

	s.logger.Debug("Fetch started", map[string]interface{}{
		"seq":      ticket.Seq,
		"currency": params.Currency,
		"start":    params.StartMillis,
		"end":      params.EndMillis,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result, err := s.fetcher.Series(s.ctx, ticket.Params)
		s.complete(ticket, result, err)
	}()

	return ticket
}

// complete applies a finished fetch if it is still the most recent one
func (s *Session) complete(ticket Ticket, result *entity.Series, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.Seq != s.seq.Load() || ticket.Seq <= s.latestSeq {
		s.logger.Debug("Stale fetch discarded", map[string]interface{}{
			"seq":    ticket.Seq,
			"latest": s.seq.Load(),
		})
		return
	}

	update := Update{Ticket: ticket}
	if err != nil {
		s.logger.Warn("Fetch failed, keeping previous series", map[string]interface{}{
			"seq":   ticket.Seq,
			"error": err.Error(),
		})
		update.Series = s.latest
		update.Err = err
	} else {
		s.latest = result
		s.latestSeq = ticket.Seq
		update.Series = result
	}

	for _, fn := range s.subscribers {
		fn(update)
	}
}

// Latest returns the most recently accepted series and its sequence number.
// The series is nil until a fetch succeeds.
func (s *Session) Latest() (*entity.Series, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latest, s.latestSeq
}

// Wait blocks until every started fetch has completed
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops in-flight fetches and waits for them to return
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}
