package httpapi

import (
	"github.com/dehyl/missionctl/internal/config"
	"github.com/dehyl/missionctl/internal/gateway"
	"github.com/dehyl/missionctl/internal/metrics"
	"github.com/dehyl/missionctl/internal/storage"
)

type Service struct {
	store storage.Store
	bus   Broadcaster
	gw    *gateway.Client
	cfg   *config.Config
	met   *metrics.Metrics
}

type Broadcaster interface {
	Broadcast(event any)
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.bus = b
	return s
}

func (s *Service) WithGateway(gw *gateway.Client) *Service {
	s.gw = gw
	return s
}

func (s *Service) WithConfig(cfg *config.Config) *Service {
	s.cfg = cfg
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.met = m
	return s
}

func (s *Service) broadcast(event map[string]any) {
	if s.bus != nil {
		s.bus.Broadcast(event)
	}
}
