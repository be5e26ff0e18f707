package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/logging"
	"apotekku/backend/internal/reconcile"
	"apotekku/backend/internal/report"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

const dateLayout = "2006-01-02"

// ErrForbidden is returned when the actor lacks the role an operation needs.
var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo    store.Repository
	reports *report.Engine
	carts   cache.CartStore
	locker  cache.Locker
	log     *logrus.Logger
	now     func() time.Time
}

// New wires the service. Nil collaborators fall back to in-process versions.
func New(repo store.Repository, reports *report.Engine, carts cache.CartStore, locker cache.Locker, logger *logrus.Logger) *Service {
	if reports == nil {
		reports = report.NewEngine(repo, nil, 0, time.UTC)
	}
	if carts == nil {
		carts = cache.NewMemoryCartStore(4 * time.Hour)
	}
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Service{
		repo:    repo,
		reports: reports,
		carts:   carts,
		locker:  locker,
		log:     logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return ""
}

// restock adds units back for each medicine in ascending id order, the same
// order checkout locks medicine rows in. Medicines that no longer exist are
// skipped when skipMissing is set. It returns the quantities actually added.
func restock(ctx context.Context, tx store.Tx, qtys map[string]int, skipMissing bool) (map[string]int, error) {
	ids := make([]string, 0, len(qtys))
	for id, qty := range qtys {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	done := make(map[string]int, len(ids))
	for _, id := range ids {
		err := tx.IncrementStock(ctx, id, qtys[id])
		if skipMissing && errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("restock %s: %w", id, err)
		}
		done[id] = qtys[id]
	}
	return done, nil
}

// refreshFigures recomputes the cached money fields of a sale from its current
// items and return lines and stores them. It must run inside the transaction
// that changed those rows.
func refreshFigures(ctx context.Context, tx store.Tx, saleID string) (*domain.Sale, reconcile.Figures, error) {
	sale, err := tx.GetSaleForUpdate(ctx, saleID)
	if err != nil {
		return nil, reconcile.Figures{}, err
	}
	items, err := tx.ListSaleItems(ctx, saleID)
	if err != nil {
		return nil, reconcile.Figures{}, fmt.Errorf("list sale items: %w", err)
	}
	lines, err := tx.ListReturnItems(ctx, saleID)
	if err != nil {
		return nil, reconcile.Figures{}, fmt.Errorf("list return items: %w", err)
	}

	figures := reconcile.Compute(*sale, items, lines)
	figures.Apply(sale)
	if err := tx.UpdateSaleFigures(ctx, *sale); err != nil {
		return nil, reconcile.Figures{}, fmt.Errorf("update sale figures: %w", err)
	}
	sale.Items = items
	return sale, figures, nil
}

// afterSaleChange drops cached reports once a transaction touching sales has
// committed.
func (s *Service) afterSaleChange(ctx context.Context) {
	if err := s.reports.Invalidate(ctx); err != nil {
		logging.LogError(s.log, "service", "afterSaleChange", "failed to invalidate report cache", nil, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.log.WithFields(logrus.Fields{
			"action": action,
			"entity": entityType + "/" + entityID,
		}).WithError(err).Warn("failed to write audit log")
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.ParseInLocation(dateLayout, date, s.reports.Location())
		if err != nil {
			return nil, store.Invalid("date", "must be YYYY-MM-DD")
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// Dashboard returns the sales dashboard, cached briefly.
func (s *Service) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	return s.reports.Dashboard(ctx)
}

func (s *Service) today() time.Time {
	now := s.now().In(s.reports.Location())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// parseDay parses a YYYY-MM-DD value in the report timezone. An empty value
// yields nil.
func (s *Service) parseDay(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(dateLayout, value, s.reports.Location())
	if err != nil {
		return nil, store.Invalid(field, "must be YYYY-MM-DD")
	}
	return &day, nil
}
