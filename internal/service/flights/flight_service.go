package flights

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/Domenick1991/aerobound/internal/cache"
	"github.com/Domenick1991/aerobound/internal/metrics"
	"github.com/sirupsen/logrus"
)

type FlightUseCase interface {
	SearchOffersGet(ctx context.Context, params url.Values) (json.RawMessage, error)
	SearchOffers(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	ConfirmPrice(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	GetOrder(ctx context.Context, orderID string) (json.RawMessage, error)
	CancelOrder(ctx context.Context, orderID string) error
	Locations(ctx context.Context, keyword, subType string) (json.RawMessage, error)
	SeatMaps(ctx context.Context, orderID string) (json.RawMessage, error)
	SeatMapsForOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
}

// Provider is the flight inventory API.
type Provider interface {
	SearchOffersGet(ctx context.Context, params url.Values) (json.RawMessage, error)
	SearchOffers(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	ConfirmPrice(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	GetOrder(ctx context.Context, orderID string) (json.RawMessage, error)
	CancelOrder(ctx context.Context, orderID string) error
	Locations(ctx context.Context, keyword, subType string) (json.RawMessage, error)
	SeatMaps(ctx context.Context, orderID string) (json.RawMessage, error)
	SeatMapsForOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type FlightService struct {
	provider Provider
	cache    Cache
	log      *logrus.Entry
}

// NewFlightService builds the service. cache may be nil, in which case every lookup goes to the provider.
func NewFlightService(provider Provider, cache Cache, log *logrus.Entry) *FlightService {
	return &FlightService{provider: provider, cache: cache, log: log.WithField("component", "flights")}
}

// SearchOffersGet is cached by the query parameters.
func (s *FlightService) SearchOffersGet(ctx context.Context, params url.Values) (json.RawMessage, error) {
	flat := make(map[string]string, len(params))
	for name := range params {
		flat[name] = params.Get(name)
	}
	return s.cached(ctx, "flight-offers", flat, func() (json.RawMessage, error) {
		return s.provider.SearchOffersGet(ctx, params)
	})
}

func (s *FlightService) SearchOffers(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return s.provider.SearchOffers(ctx, body)
}

func (s *FlightService) ConfirmPrice(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	return s.provider.ConfirmPrice(ctx, offer)
}

func (s *FlightService) GetOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	return s.provider.GetOrder(ctx, orderID)
}

func (s *FlightService) CancelOrder(ctx context.Context, orderID string) error {
	return s.provider.CancelOrder(ctx, orderID)
}

func (s *FlightService) Locations(ctx context.Context, keyword, subType string) (json.RawMessage, error) {
	params := map[string]string{"keyword": keyword, "sub_type": subType}
	return s.cached(ctx, "locations", params, func() (json.RawMessage, error) {
		return s.provider.Locations(ctx, keyword, subType)
	})
}

func (s *FlightService) SeatMaps(ctx context.Context, orderID string) (json.RawMessage, error) {
	return s.provider.SeatMaps(ctx, orderID)
}

func (s *FlightService) SeatMapsForOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	return s.provider.SeatMapsForOffer(ctx, offer)
}

// cached serves kind lookups from the cache. Cache errors are logged and fall through to load.
func (s *FlightService) cached(ctx context.Context, kind string, params map[string]string, load func() (json.RawMessage, error)) (json.RawMessage, error) {
	if s.cache == nil {
		return load()
	}

	key := cache.Key(kind, params)
	var hit json.RawMessage
	found, err := s.cache.Get(ctx, key, &hit)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	if found && len(hit) > 0 {
		metrics.LookupCacheRequests.WithLabelValues(kind, "hit").Inc()
		return hit, nil
	}
	metrics.LookupCacheRequests.WithLabelValues(kind, "miss").Inc()

	data, err := load()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return data, nil
}

var _ FlightUseCase = (*FlightService)(nil)
