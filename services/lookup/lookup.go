package lookup

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/crawler"
	"sjsage522/psa10finder/internal/lock"
	"sjsage522/psa10finder/internal/store"
	"sjsage522/psa10finder/logger"
	"sjsage522/psa10finder/pkg/errors"
	"sjsage522/psa10finder/services/publisher"
)

const (
	// NotFoundMessage is reported when no record exists after scraping
	NotFoundMessage = "Card not found on SNKRDUNK."

	// RenderingFailureMessage replaces raw rendering errors in results
	RenderingFailureMessage = "Failed to load SNKRDUNK pages."

	// PublishKey is the stream field carrying a scrape result
	PublishKey = "b64_price"
)

// Scraper runs the marketplace pipeline for one card
type Scraper interface {
	FetchCheapest(ctx context.Context, id card.Identifier) (*crawler.ScrapeResult, error)
}

// Service answers price queries from the store, scraping on a miss
type Service struct {
	scraper     Scraper
	store       store.Store
	locker      lock.Locker
	publisher   publisher.Publisher
	lockTimeout time.Duration
	log         *logger.Logger
}

// NewService wires the query path. pub may be nil.
func NewService(scraper Scraper, st store.Store, locker lock.Locker, pub publisher.Publisher, lockTimeout time.Duration) *Service {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	return &Service{
		scraper:     scraper,
		store:       st,
		locker:      locker,
		publisher:   pub,
		lockTimeout: lockTimeout,
		log:         logger.ForLookup(),
	}
}

// Query returns the most recent record whose card name contains name.
// On a miss the card is scraped once under a per-name lock, the record is
// inserted and the store is queried again.
func (s *Service) Query(ctx context.Context, name, set, number string) Result {
	id := card.Identifier{RawName: strings.TrimSpace(name), RawSet: set, CardNumber: strings.TrimSpace(number)}
	if id.RawName == "" {
		return Failure("No keyword provided")
	}
	if strings.TrimSpace(id.RawSet) == "" {
		id.RawSet = card.DefaultSetName
	}
	log := s.log.WithFields(logger.Fields{"card_name": id.RawName, "set": id.RawSet, "number": id.CardNumber})

	if rec, err := s.store.Latest(ctx, id.RawName); err == nil {
		log.Debug().Int64("record_id", rec.ID).Msg("Cache hit")
		return fromRecord(rec, true)
	} else if !stderrors.Is(err, store.ErrNoRecord) {
		return s.failure(log, err)
	}

	release, err := s.acquire(ctx, id.RawName)
	if err != nil {
		return s.failure(log, err)
	}
	defer func() {
		if err := release(); err != nil {
			log.Warn().Err(err).Msg("Failed to release lock")
		}
	}()

	// another query may have scraped the card while we waited
	if rec, err := s.store.Latest(ctx, id.RawName); err == nil {
		log.Debug().Int64("record_id", rec.ID).Msg("Cache filled while waiting for lock")
		return fromRecord(rec, true)
	} else if !stderrors.Is(err, store.ErrNoRecord) {
		return s.failure(log, err)
	}

	result, err := s.scraper.FetchCheapest(ctx, id)
	if err != nil {
		return s.failure(log, err)
	}

	if _, err := s.store.Insert(ctx, store.PriceRecord{
		CardName:  result.CardName,
		Price:     store.PriceOf(result.Price),
		URL:       result.URL,
		ItemCount: result.Count,
	}); err != nil {
		return s.failure(log, err)
	}
	s.publish(ctx, log, result)

	rec, err := s.store.Latest(ctx, id.RawName)
	if stderrors.Is(err, store.ErrNoRecord) {
		return Failure(NotFoundMessage)
	}
	if err != nil {
		return s.failure(log, err)
	}
	log.Info().Int("price", result.Price).Int("count", result.Count).Msg("Stored new price")
	return fromRecord(rec, false)
}

func (s *Service) acquire(ctx context.Context, key string) (lock.Release, error) {
	if s.locker == nil {
		return func() error { return nil }, nil
	}
	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	release, err := s.locker.Acquire(lockCtx, key)
	if err != nil {
		return nil, errors.NewLock(key, err)
	}
	return release, nil
}

// publish sends the scrape result to the event stream; failures are only logged
func (s *Service) publish(ctx context.Context, log *logger.Logger, result *crawler.ScrapeResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode scrape result")
		return
	}
	if err := s.publisher.Publish(ctx, PublishKey, data); err != nil {
		log.Warn().Err(err).Msg("Failed to publish scrape result")
		return
	}
	if err := s.publisher.TrimStreams(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to trim result stream")
	}
}

func (s *Service) failure(log *logger.Logger, err error) Result {
	switch {
	case errors.IsNotFound(err):
		log.Info().Err(err).Msg("Card not found")
		return Failure(NotFoundMessage)
	case errors.IsRendering(err):
		log.Error().Err(err).Msg("Rendering failed")
		return Result{Error: RenderingFailureMessage, DebugInfo: errors.DebugOf(err)}
	default:
		log.Error().Err(err).Msg("Query failed")
		return Failure(err.Error())
	}
}
