package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
)

// ReleaseKey identifies the one release an order may perform per product.
// An order gives its stock back at most once in its lifetime, whatever the
// cause, so the key does not carry the cause.
func ReleaseKey(orderID, productID string) string {
	return "release:" + orderID + ":" + productID
}

type release struct {
	key       string
	productID string
	qty       int64
}

// releasesFor sums line items per distinct product so each product lock is
// taken once.
func releasesFor(o domain.Order) []release {
	qty := make(map[string]int64)
	for _, item := range o.Items {
		qty[item.ProductID] += item.Quantity
	}
	out := make([]release, 0, len(qty))
	for productID, n := range qty {
		out = append(out, release{key: ReleaseKey(o.ID, productID), productID: productID, qty: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}

// releaseStock returns every product of o to the ledger and records that on
// the order. Products are released in parallel; each release is keyed so a
// retry after a partial failure only applies what is still missing.
func (s *Service) releaseStock(ctx context.Context, o *domain.Order, cause string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, rel := range releasesFor(*o) {
		g.Go(func() error {
			applied, err := s.inv.ReleaseOnce(gctx, rel.key, rel.productID, rel.qty)
			if err != nil {
				return fmt.Errorf("release product %s for order %s: %w", rel.productID, o.ID, err)
			}
			if applied {
				s.metrics.Released(cause, rel.qty)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	o.MarkStockReleased()
	if _, err := s.repo.SaveOrder(ctx, *o); err != nil {
		return fmt.Errorf("mark stock released on order %s: %w", o.ID, err)
	}
	return nil
}

// settleRelease runs releaseStock for an order already stored in a
// non-holding status. A failure leaves the order pending; the release sweeper
// finishes it later, so the caller's transition still stands.
func (s *Service) settleRelease(ctx context.Context, o *domain.Order, cause string) {
	if err := s.releaseStock(ctx, o, cause); err != nil {
		s.log.Error("stock release pending", "order_id", o.ID, "cause", cause, "err", err)
	}
}

// ResumeRelease finishes the stock release of a single order if it is still
// pending. It reports whether any work was needed.
func (s *Service) ResumeRelease(ctx context.Context, orderID string) (bool, error) {
	pending := false
	_, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if !o.PendingRelease() {
			return nil
		}
		pending = true
		return s.releaseStock(ctx, o, "resume")
	})
	return pending, err
}

// ResumePendingReleases sweeps owed stock returns and up to limit pending
// orders. It reports how many returns and orders it finished.
func (s *Service) ResumePendingReleases(ctx context.Context, limit int) (int, error) {
	done, err := s.resumeStockReturns(ctx, limit)
	if err != nil {
		return done, err
	}
	orders, err := s.repo.FindPendingReleases(ctx, limit)
	if err != nil {
		return done, fmt.Errorf("find pending releases: %w", err)
	}
	for _, o := range orders {
		ok, err := s.ResumeRelease(ctx, o.ID)
		if err != nil {
			s.log.Error("resume release failed", "order_id", o.ID, "err", err)
			continue
		}
		if ok {
			done++
		}
	}
	return done, nil
}

// oweStock journals r in the repository, falling back to the in-process list
// when the repository is unavailable too.
func (s *Service) oweStock(ctx context.Context, r domain.StockReturn) {
	if err := s.repo.SaveStockReturn(ctx, r); err != nil {
		s.log.Error("stock return kept in memory", "order_id", r.OrderID, "product_id", r.ProductID, "err", err)
		s.owedMu.Lock()
		s.owed = append(s.owed, r)
		s.owedMu.Unlock()
	}
}

func (s *Service) takeOwed() []domain.StockReturn {
	s.owedMu.Lock()
	defer s.owedMu.Unlock()
	owed := s.owed
	s.owed = nil
	return owed
}

func (s *Service) returnStock(ctx context.Context, r domain.StockReturn) error {
	applied, err := s.inv.ReleaseOnce(ctx, r.Key, r.ProductID, r.Quantity)
	if err != nil {
		return fmt.Errorf("return product %s for order %s: %w", r.ProductID, r.OrderID, err)
	}
	if applied {
		s.metrics.Released("placement_failed", r.Quantity)
	}
	return nil
}

// resumeStockReturns applies owed returns from memory and from the journal.
// Orders whose returns all succeeded are marked released.
func (s *Service) resumeStockReturns(ctx context.Context, limit int) (int, error) {
	done := 0
	settled := make(map[string]bool)

	for _, r := range s.takeOwed() {
		if err := s.returnStock(ctx, r); err != nil {
			s.log.Error("stock return failed", "order_id", r.OrderID, "err", err)
			s.oweStock(ctx, r)
			settled[r.OrderID] = false
			continue
		}
		done++
		if _, seen := settled[r.OrderID]; !seen {
			settled[r.OrderID] = true
		}
	}

	journaled, err := s.repo.FindStockReturns(ctx, limit)
	if err != nil {
		return done, fmt.Errorf("find stock returns: %w", err)
	}
	for _, r := range journaled {
		if err := s.returnStock(ctx, r); err != nil {
			s.log.Error("stock return failed", "order_id", r.OrderID, "err", err)
			settled[r.OrderID] = false
			continue
		}
		done++
		if _, seen := settled[r.OrderID]; !seen {
			settled[r.OrderID] = true
		}
		if err := s.repo.DeleteStockReturn(ctx, r.Key); err != nil {
			// the key is already applied, so the next sweep only deletes it
			s.log.Error("could not clear stock return", "key", r.Key, "err", err)
		}
	}

	for orderID, ok := range settled {
		if ok {
			s.markReturned(ctx, orderID)
		}
	}
	return done, nil
}

// markReturned records a cancelled placement whose stock came back through the
// journal. Orders that never reached the store are skipped.
func (s *Service) markReturned(ctx context.Context, orderID string) {
	_, err := s.mutate(ctx, orderID, func(ctx context.Context, o *domain.Order) error {
		if o.Status.HoldsStock() || o.StockReleased || len(o.Items) > 0 {
			return nil
		}
		o.MarkStockReleased()
		_, err := s.repo.SaveOrder(ctx, *o)
		return err
	})
	if err != nil && !errors.Is(err, apperr.ErrOrderNotFound) {
		s.log.Error("could not mark placement released", "order_id", orderID, "err", err)
	}
}
