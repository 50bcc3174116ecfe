// Package admin implements order triage and ban moderation for the administrator.
package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/forge/domain"
	"github.com/m3rciful/forgebot/forge/notify"
)

// DefaultPageSize is the number of orders per triage page.
const DefaultPageSize = 3

// Repository is the storage the admin service reads and writes.
type Repository interface {
	ActiveOrders(ctx context.Context, limit, offset int) ([]domain.OrderView, error)
	CountActiveOrders(ctx context.Context) (int, error)
	Order(ctx context.Context, id int64) (*domain.OrderView, error)
	SetOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error
	OrderStats(ctx context.Context) ([]domain.StatusCount, error)
	UnbanRequests(ctx context.Context, status domain.UnbanStatus) ([]domain.UnbanRequest, error)
	UnbanRequest(ctx context.Context, id int64) (*domain.UnbanRequest, error)
	DecideUnbanRequest(ctx context.Context, id int64, status domain.UnbanStatus) error
}

// BanRegistry lifts and lists bans.
type BanRegistry interface {
	Unban(ctx context.Context, who domain.Identity) error
	Active(ctx context.Context) ([]domain.BanRecord, error)
}

// Page is one page of the triage list.
type Page struct {
	Orders []domain.OrderView
	Page   int
	Pages  int
	Total  int
}

// Stats are order counts by status.
type Stats struct {
	Counts map[domain.OrderStatus]int
	Total  int
}

// Service runs privileged operations. Every method checks the caller first.
type Service struct {
	repo     Repository
	bans     BanRegistry
	notifier notify.Notifier
	adminID  domain.Identity
	pageSize int
}

// NewService builds the admin service. pageSize <= 0 selects DefaultPageSize.
func NewService(repo Repository, bans BanRegistry, n notify.Notifier, adminID domain.Identity, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{repo: repo, bans: bans, notifier: n, adminID: adminID, pageSize: pageSize}
}

// IsAdmin reports whether who is the configured administrator.
func (s *Service) IsAdmin(who domain.Identity) bool {
	return s.adminID != 0 && who == s.adminID
}

func (s *Service) authorize(ctx context.Context, caller domain.Identity) error {
	if s.IsAdmin(caller) {
		return nil
	}
	logger.Warn(ctx, logger.ComponentAdmin, "admin.denied",
		slog.Int64("user_id", int64(caller)),
	)
	return domain.ErrUnauthorized
}

// ListOrders returns the requested page of new and in-progress orders, newest first.
// The page number is clamped to the available range.
func (s *Service) ListOrders(ctx context.Context, caller domain.Identity, page int) (Page, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return Page{}, err
	}
	total, err := s.repo.CountActiveOrders(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count orders: %w", err)
	}
	pages := max(1, (total+s.pageSize-1)/s.pageSize)
	page = min(max(page, 1), pages)

	orders, err := s.repo.ActiveOrders(ctx, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("list orders: %w", err)
	}
	return Page{Orders: orders, Page: page, Pages: pages, Total: total}, nil
}

// OpenOrder returns one order with its client.
func (s *Service) OpenOrder(ctx context.Context, caller domain.Identity, id int64) (*domain.OrderView, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	o, err := s.repo.Order(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open order %d: %w", id, err)
	}
	return o, nil
}

// SetOrderStatus moves an open order to next and notifies the client.
func (s *Service) SetOrderStatus(ctx context.Context, caller domain.Identity, id int64, next domain.OrderStatus) (*domain.OrderView, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	o, err := s.repo.Order(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	if !o.Status.CanMoveTo(next) {
		return nil, fmt.Errorf("order %d %s -> %s: %w", id, o.Status, next, domain.ErrInvalidTransition)
	}
	if err := s.repo.SetOrderStatus(ctx, id, next); err != nil {
		return nil, fmt.Errorf("set order %d status: %w", id, err)
	}
	prev := o.Status
	o.Status = next
	logger.Info(ctx, logger.ComponentAdmin, "order.status_changed",
		slog.Int64("order_id", id),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)

	if o.ClientIdentity != nil {
		notify.BestEffort(ctx, s.notifier, logger.ComponentAdmin, *o.ClientIdentity, StatusNotice(id, next))
	}
	return o, nil
}

// Stats counts orders by status.
func (s *Service) Stats(ctx context.Context, caller domain.Identity) (Stats, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return Stats{}, err
	}
	rows, err := s.repo.OrderStats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("order stats: %w", err)
	}
	st := Stats{Counts: make(map[domain.OrderStatus]int, len(domain.AllStatuses))}
	for _, r := range rows {
		st.Counts[r.Status] = r.Count
		st.Total += r.Count
	}
	return st, nil
}

// ListBanned returns active bans newest first.
func (s *Service) ListBanned(ctx context.Context, caller domain.Identity) ([]domain.BanRecord, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	return s.bans.Active(ctx)
}

// ListUnbanRequests returns pending unban requests newest first.
func (s *Service) ListUnbanRequests(ctx context.Context, caller domain.Identity) ([]domain.UnbanRequest, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	list, err := s.repo.UnbanRequests(ctx, domain.UnbanPending)
	if err != nil {
		return nil, fmt.Errorf("list unban requests: %w", err)
	}
	return list, nil
}

// OpenUnbanRequest returns one request.
func (s *Service) OpenUnbanRequest(ctx context.Context, caller domain.Identity, id int64) (*domain.UnbanRequest, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	r, err := s.repo.UnbanRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open unban request %d: %w", id, err)
	}
	return r, nil
}

// Approve lifts the requester's ban and marks the request approved.
func (s *Service) Approve(ctx context.Context, caller domain.Identity, id int64) (*domain.UnbanRequest, error) {
	return s.decide(ctx, caller, id, domain.UnbanApproved)
}

// Reject marks the request rejected; the ban stays.
func (s *Service) Reject(ctx context.Context, caller domain.Identity, id int64) (*domain.UnbanRequest, error) {
	return s.decide(ctx, caller, id, domain.UnbanRejected)
}

func (s *Service) decide(ctx context.Context, caller domain.Identity, id int64, status domain.UnbanStatus) (*domain.UnbanRequest, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	r, err := s.repo.UnbanRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load unban request %d: %w", id, err)
	}
	if r.Status != domain.UnbanPending {
		return nil, domain.ErrAlreadyDecided
	}
	if status == domain.UnbanApproved {
		if err := s.bans.Unban(ctx, r.Identity); err != nil {
			return nil, fmt.Errorf("lift ban: %w", err)
		}
	}
	if err := s.repo.DecideUnbanRequest(ctx, id, status); err != nil {
		return nil, fmt.Errorf("decide unban request %d: %w", id, err)
	}
	r.Status = status
	logger.Info(ctx, logger.ComponentAdmin, "unban.decided",
		slog.Int64("request_id", id),
		slog.Int64("target_id", int64(r.Identity)),
		slog.String("decision", string(status)),
	)

	text := msgUnbanRejected
	if status == domain.UnbanApproved {
		text = msgUnbanApproved
	}
	notify.BestEffort(ctx, s.notifier, logger.ComponentAdmin, r.Identity, text)
	return r, nil
}
