package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/digsentry/digsentry/internal/adapters/postgres"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/core/usecases"
)

// StateCache is the read side of the valkey client: handlers only ever
// read device state the monitor wrote, plus a ping for readiness.
type StateCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sites     *usecases.SiteService
	Lines     *usecases.LineService
	Incidents *usecases.IncidentService
	Events    ports.AlertEventRepository
	Publisher ports.EventPublisher
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     StateCache
}
