package service

import (
	"cargo-market/internal/general/logger"
	"cargo-market/internal/general/rabbitmq"
	"cargo-market/internal/hub"
	"cargo-market/internal/ports"
)

// trackingService holds all dependencies required by the tracking service.
type trackingService struct {
	logger    *logger.Logger
	uow       ports.UnitOfWork
	locations ports.LocationRepository
	hub       *hub.Hub
	pub       ports.Publisher
	rabbitmq  *rabbitmq.Client
}

// NewTrackingService constructs the service with required dependencies.
func NewTrackingService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	locations ports.LocationRepository,
	h *hub.Hub,
	pub ports.Publisher,
	mq *rabbitmq.Client,
) ports.TrackingService {
	return &trackingService{
		logger:    logger,
		uow:       uow,
		locations: locations,
		hub:       h,
		pub:       pub,
		rabbitmq:  mq,
	}
}
