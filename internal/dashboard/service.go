// Package dashboard builds the console landing page summary.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
)

// NotWiredText is shown on cards that have no live source.
const NotWiredText = "Not yet wired to a metrics source"

// CardState tells the template whether a card has a number to show.
type CardState string

const (
	CardReady    CardState = "ready"
	CardNotWired CardState = "not_wired"
)

// Card is one summary tile linking to a management view.
type Card struct {
	Key    string
	Title  string
	Value  string
	Detail string
	Link   string
	State  CardState
}

// MetricsSource is the slice of the metrics API the dashboard reads.
type MetricsSource interface {
	FetchDashboardSummary(ctx context.Context) (apiclient.DashboardSummary, error)
	FetchSites(ctx context.Context) ([]apiclient.Site, error)
}

// Sources are the per-request inputs of a summary. Nil fields leave their
// card not wired.
type Sources struct {
	Metrics   MetricsSource
	UserCount func(ctx context.Context) (int, error)
	RoleCount func() int
}

// Service assembles dashboard cards.
type Service struct {
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Summary fetches every source concurrently. A failing source only leaves
// its card not wired; an expired session fails the whole summary.
func (s *Service) Summary(ctx context.Context, src Sources) ([]Card, error) {
	cards := []Card{
		notWired("users", "Users", "/users"),
		notWired("roles", "Roles", "/roles"),
		notWired("sites", "Sites", "/sites"),
		notWired("kpis", "Network KPIs", "/sites"),
	}

	if src.RoleCount != nil {
		cards[1] = ready(cards[1], fmt.Sprintf("%d", src.RoleCount()), "roles defined")
	}

	g, gctx := errgroup.WithContext(ctx)
	if src.UserCount != nil {
		g.Go(func() error {
			n, err := src.UserCount(gctx)
			if err != nil {
				return s.degrade("users", err)
			}
			cards[0] = ready(cards[0], fmt.Sprintf("%d", n), "accounts")
			return nil
		})
	}
	if src.Metrics != nil {
		g.Go(func() error {
			sites, err := src.Metrics.FetchSites(gctx)
			if err != nil {
				return s.degrade("sites", err)
			}
			cards[2] = ready(cards[2], fmt.Sprintf("%d", len(sites)), "sites reporting")
			return nil
		})
		g.Go(func() error {
			sum, err := src.Metrics.FetchDashboardSummary(gctx)
			if err != nil {
				return s.degrade("kpis", err)
			}
			cards[3] = ready(cards[3], fmt.Sprintf("%.2f%%", sum.Availability),
				fmt.Sprintf("availability, %d active alarms, %.1f Mbps average throughput", sum.ActiveAlarms, sum.AvgThroughputMbps))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cards, nil
}

// degrade logs a source failure and swallows it unless the session expired.
func (s *Service) degrade(card string, err error) error {
	if errors.Is(err, apiclient.ErrSessionExpired) {
		return err
	}
	s.logger.Warn("dashboard source unavailable", slog.String("card", card), slog.Any("error", err))
	return nil
}

func notWired(key, title, link string) Card {
	return Card{Key: key, Title: title, Link: link, Detail: NotWiredText, State: CardNotWired}
}

func ready(c Card, value, detail string) Card {
	c.Value = value
	c.Detail = detail
	c.State = CardReady
	return c
}
