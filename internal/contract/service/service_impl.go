package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/faktura/internal/account/domain"
	"github.com/smallbiznis/faktura/internal/clock"
	contractdomain "github.com/smallbiznis/faktura/internal/contract/domain"
	invoicedomain "github.com/smallbiznis/faktura/internal/invoice/domain"
	"github.com/smallbiznis/faktura/internal/position"
	prepaiddomain "github.com/smallbiznis/faktura/internal/prepaid/domain"
	"github.com/smallbiznis/faktura/internal/scheduler/guard"
	trackerdomain "github.com/smallbiznis/faktura/internal/tracker/domain"
	"github.com/smallbiznis/faktura/pkg/db/option"
	"github.com/smallbiznis/faktura/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	InvoiceSvc invoicedomain.Service
	PrepaidSvc prepaiddomain.Service
	AccountSvc accountdomain.Service
	TrackerSvc trackerdomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock

	invoiceSvc invoicedomain.Service
	prepaidSvc prepaiddomain.Service
	accountSvc accountdomain.Service
	trackerSvc trackerdomain.Service

	contractRepo repository.Repository[contractdomain.Contract]
	linkRepo     repository.Repository[position.ContractPosition]
	instanceRepo repository.Repository[trackerdomain.TrackerInstance]
}

func NewService(p ServiceParam) contractdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("contract.service"),

		genID: p.GenID,
		clock: p.Clock,

		invoiceSvc: p.InvoiceSvc,
		prepaidSvc: p.PrepaidSvc,
		accountSvc: p.AccountSvc,
		trackerSvc: p.TrackerSvc,

		contractRepo: repository.ProvideStore[contractdomain.Contract](p.DB),
		linkRepo:     repository.ProvideStore[position.ContractPosition](p.DB),
		instanceRepo: repository.ProvideStore[trackerdomain.TrackerInstance](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (contractdomain.Contract, error) {
	contract, err := s.contractRepo.FindOne(ctx, &contractdomain.Contract{ID: id})
	if err != nil {
		return contractdomain.Contract{}, err
	}
	if contract == nil {
		return contractdomain.Contract{}, contractdomain.ErrContractNotFound
	}
	return *contract, nil
}

func (s *Service) Positions(ctx context.Context, contractID snowflake.ID) ([]position.Position, error) {
	var rows []position.Position
	err := s.db.WithContext(ctx).Raw(
		`SELECT p.* FROM positions p
		 JOIN contract_positions cp ON cp.position_id = p.id
		 WHERE cp.contract_id = ?
		 ORDER BY p.id`,
		contractID,
	).Scan(&rows).Error
	return rows, err
}

func (s *Service) Start(ctx context.Context, contract *contractdomain.Contract) error {
	if contract.StartedAt != nil {
		return contractdomain.ErrAlreadyStarted
	}
	now := s.clock.Now()
	contract.StartedAt = &now
	return s.contractRepo.Update(ctx, contract.ID.String(), map[string]any{
		"started_at": now,
		"updated_at": now,
	})
}

func (s *Service) EvaluateAll(ctx context.Context) error {
	contracts, err := s.contractRepo.Find(ctx, &contractdomain.Contract{}, option.WithNull("started_at", false))
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for _, c := range contracts {
		if guard.EnsureContractBillable(*c, now) != nil {
			continue
		}
		if err := s.Evaluate(ctx, c); err != nil {
			s.log.Error("contract evaluation failed",
				zap.String("contract_id", c.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Evaluate runs one billing tick. Every money-affecting branch executes as
// one transaction so a failure after the prepaid debit rolls the debit back
// together with the invoice.
func (s *Service) Evaluate(ctx context.Context, contract *contractdomain.Contract) error {
	now := s.clock.Now()
	if contract.StartedAt == nil {
		return nil
	}

	if contract.CancellationActive() && !now.Before(*contract.CancelledTo) {
		// Coverage ended. Post-pay owes a prorated final invoice for the
		// partial period. A prepaid lease whose coverage ran out attempts
		// renewal; an instant cancellation (coverage cut to the request
		// time itself) stays final.
		if contract.Type == contractdomain.TypePostPay &&
			contract.LastInvoiceAt != nil &&
			contract.LastInvoiceAt.Before(*contract.CancelledTo) {
			return s.billFinal(ctx, contract, *contract.CancelledTo)
		}
		if contract.Prepaid() &&
			contract.CancelledTo.After(*contract.CancelledAt) &&
			contractdomain.BillingDue(*contract, now) {
			return s.billPrepaid(ctx, contract)
		}
		return nil
	}

	switch contract.Type {
	case contractdomain.TypePrePay:
		if !contractdomain.BillingDue(*contract, now) {
			return nil
		}
		return s.billPrePay(ctx, contract)
	case contractdomain.TypePostPay:
		if contract.LastInvoiceAt == nil {
			// Nothing consumed yet; the first tick only anchors the cursor.
			return s.advanceCursor(ctx, s.db, contract, *contract.StartedAt, nil)
		}
		if !contractdomain.BillingDue(*contract, now) {
			return nil
		}
		return s.billPostPay(ctx, contract)
	case contractdomain.TypePrepaidAuto, contractdomain.TypePrepaidManual:
		if !contractdomain.BillingDue(*contract, now) {
			return nil
		}
		return s.billPrepaid(ctx, contract)
	}
	return nil
}

func (s *Service) billPrePay(ctx context.Context, contract *contractdomain.Contract) error {
	positions, err := s.Positions(ctx, contract.ID)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}
	reverseCharge, err := s.accountSvc.ReverseCharge(ctx, contract.AccountID)
	if err != nil {
		return err
	}

	cursor := contractdomain.NextCursor(*contract)
	periodEnd := cursor.AddDate(0, 0, contract.InvoicePeriod)

	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err = s.archiveInvoice(ctx, tx, contract, positions, reverseCharge, invoicedomain.StatusUnpaid, cursor, cursor, periodEnd)
		if err != nil {
			return err
		}
		return s.advanceCursor(ctx, tx, contract, cursor, nil)
	})
	if err != nil {
		return err
	}

	s.invoiceSvc.SendNotification(ctx, &invoice)
	return nil
}

func (s *Service) billPostPay(ctx context.Context, contract *contractdomain.Contract) error {
	cursor := contractdomain.NextCursor(*contract)
	return s.billElapsed(ctx, contract, *contract.LastInvoiceAt, cursor, decimal.NewFromInt(1))
}

// billFinal settles the partial period [LastInvoiceAt, boundary) of a
// post-pay contract whose coverage ended mid-period.
func (s *Service) billFinal(ctx context.Context, contract *contractdomain.Contract, boundary time.Time) error {
	factor := contractdomain.ProrationFactor(*contract, *contract.LastInvoiceAt, boundary)
	return s.billElapsed(ctx, contract, *contract.LastInvoiceAt, boundary, factor)
}

// billElapsed generates an arrears invoice for [from, to). Metered positions
// are replaced by their tracker drafts for the window; plain positions keep
// their face value scaled by factor.
func (s *Service) billElapsed(ctx context.Context, contract *contractdomain.Contract, from, to time.Time, factor decimal.Decimal) error {
	if factor.LessThanOrEqual(decimal.Zero) {
		return s.advanceCursor(ctx, s.db, contract, to, nil)
	}
	billable, err := s.elapsedPositions(ctx, contract, from, to, factor)
	if err != nil {
		return err
	}
	if len(billable) == 0 {
		// Nothing billable this period; the cursor still advances so the
		// empty window is not re-evaluated forever.
		return s.advanceCursor(ctx, s.db, contract, to, nil)
	}
	reverseCharge, err := s.accountSvc.ReverseCharge(ctx, contract.AccountID)
	if err != nil {
		return err
	}

	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err = s.archiveInvoice(ctx, tx, contract, billable, reverseCharge, invoicedomain.StatusUnpaid, to, from, to)
		if err != nil {
			return err
		}
		return s.advanceCursor(ctx, tx, contract, to, nil)
	})
	if err != nil {
		return err
	}

	s.invoiceSvc.SendNotification(ctx, &invoice)
	return nil
}

// elapsedPositions resolves the billable position set for an elapsed window.
func (s *Service) elapsedPositions(ctx context.Context, contract *contractdomain.Contract, from, to time.Time, factor decimal.Decimal) ([]position.Position, error) {
	links, err := s.linkRepo.Find(ctx, &position.ContractPosition{ContractID: contract.ID})
	if err != nil {
		return nil, err
	}
	positionRepo := repository.ProvideStore[position.Position](s.db)

	billable := make([]position.Position, 0, len(links))
	for _, link := range links {
		p, err := positionRepo.FindOne(ctx, &position.Position{ID: link.PositionID})
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		if p.TrackerInstanceID != nil {
			instance, err := s.instanceRepo.FindOne(ctx, &trackerdomain.TrackerInstance{ID: *p.TrackerInstanceID})
			if err != nil {
				return nil, err
			}
			if instance == nil {
				continue
			}
			result, err := s.trackerSvc.Calculate(ctx, *instance, from, to)
			if err != nil {
				return nil, err
			}
			if result.Draft == nil {
				continue
			}
			draft := *result.Draft
			draft.VatPercentage = p.VatPercentage
			draft.TaxCategory = p.TaxCategory
			billable = append(billable, draft)
			continue
		}
		scaled := p.Clone()
		if !factor.Equal(decimal.NewFromInt(1)) {
			scaled.Amount = scaled.Amount.Mul(factor)
		}
		billable = append(billable, scaled)
	}
	return billable, nil
}

func (s *Service) billPrepaid(ctx context.Context, contract *contractdomain.Contract) error {
	positions, err := s.Positions(ctx, contract.ID)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}
	reverseCharge, err := s.accountSvc.ReverseCharge(ctx, contract.AccountID)
	if err != nil {
		return err
	}
	gross := position.SumDiscountedGross(positions, reverseCharge)

	balance, err := s.accountSvc.PrepaidAccountBalance(ctx, contract.AccountID)
	if err != nil {
		return err
	}
	if balance.LessThan(gross.Sub(contract.ReservedPrepaidAmount)) {
		// Expected outcome, not an error: the contract is simply skipped
		// this tick and retried once funds arrive.
		s.log.Debug("prepaid contract skipped, insufficient funds",
			zap.String("contract_id", contract.ID.String()),
			zap.String("gross", gross.String()),
			zap.String("balance", balance.String()),
		)
		return nil
	}

	now := s.clock.Now()
	cursor := contractdomain.NextCursor(*contract)
	periodEnd := cursor.AddDate(0, 0, contract.InvoicePeriod)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.archiveInvoice(ctx, tx, contract, positions, reverseCharge, invoicedomain.StatusPaid, cursor, cursor, periodEnd)
		if err != nil {
			return err
		}
		remaining, err := s.prepaidSvc.ProcessTransaction(ctx, tx, contract.AccountID, contract.ReservedPrepaidAmount, gross, &invoice.ID)
		if err != nil {
			return err
		}
		// A prepaid contract's active window runs exactly as far as it is
		// paid; renewal keeps sliding the coverage end forward.
		return s.advanceCursor(ctx, tx, contract, cursor, map[string]any{
			"reserved_prepaid_amount": remaining,
			"cancelled_at":            now,
			"cancelled_to":            periodEnd,
		})
	})
}

// archiveInvoice is the shared billing tail: create the invoice with a
// position snapshot, archive it at the coverage date and render its document.
// A render failure aborts the surrounding transaction so the whole tick is
// retried later with the cursor unchanged.
func (s *Service) archiveInvoice(
	ctx context.Context,
	tx *gorm.DB,
	contract *contractdomain.Contract,
	positions []position.Position,
	reverseCharge bool,
	status invoicedomain.Status,
	archiveAt time.Time,
	periodStart, periodEnd time.Time,
) (invoicedomain.Invoice, error) {
	invoice, err := s.invoiceSvc.Create(ctx, tx, invoicedomain.CreateRequest{
		OrgID:         contract.OrgID,
		AccountID:     contract.AccountID,
		TypeID:        contract.InvoiceTypeID,
		ContractID:    &contract.ID,
		Positions:     positions,
		ReverseCharge: reverseCharge,
		Status:        status,
		PeriodStart:   &periodStart,
		PeriodEnd:     &periodEnd,
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.invoiceSvc.Archive(ctx, tx, &invoice, archiveAt); err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.invoiceSvc.Finalize(ctx, tx, &invoice); err != nil {
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

// advanceCursor moves LastInvoiceAt forward, never backward.
func (s *Service) advanceCursor(ctx context.Context, tx *gorm.DB, contract *contractdomain.Contract, to time.Time, extra map[string]any) error {
	if contract.LastInvoiceAt != nil && to.Before(*contract.LastInvoiceAt) {
		return nil
	}
	to = to.UTC()
	updates := map[string]any{
		"last_invoice_at": to,
		"updated_at":      s.clock.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := s.contractRepo.WithTrx(tx).Update(ctx, contract.ID.String(), updates); err != nil {
		return err
	}
	contract.LastInvoiceAt = &to
	if v, ok := extra["reserved_prepaid_amount"].(decimal.Decimal); ok {
		contract.ReservedPrepaidAmount = v
	}
	if v, ok := extra["cancelled_at"].(time.Time); ok {
		contract.CancelledAt = &v
	}
	if v, ok := extra["cancelled_to"].(time.Time); ok {
		contract.CancelledTo = &v
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, contract *contractdomain.Contract, instant bool) error {
	now := s.clock.Now()
	if contract.State(now) != contractdomain.StateActive {
		return contractdomain.ErrNotActive
	}

	if !instant {
		cancelledTo := contractdomain.RegularCancellationDate(*contract, now)
		contract.CancelledAt = &now
		contract.CancelledTo = &cancelledTo
		contract.CancellationRevokedAt = nil
		return s.contractRepo.Update(ctx, contract.ID.String(), map[string]any{
			"cancelled_at":            now,
			"cancelled_to":            cancelledTo,
			"cancellation_revoked_at": nil,
			"updated_at":              now,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.settleInstant(ctx, tx, contract, now); err != nil {
			return err
		}
		contract.CancelledAt = &now
		contract.CancelledTo = &now
		contract.CancellationRevokedAt = nil
		return s.contractRepo.WithTrx(tx).Update(ctx, contract.ID.String(), map[string]any{
			"cancelled_at":            now,
			"cancelled_to":            now,
			"cancellation_revoked_at": nil,
			"reserved_prepaid_amount": decimal.Zero,
			"updated_at":              now,
		})
	})
}

// settleInstant reconciles what the payer is owed or owes when coverage ends
// immediately, per billing strategy.
func (s *Service) settleInstant(ctx context.Context, tx *gorm.DB, contract *contractdomain.Contract, now time.Time) error {
	if contract.LastInvoiceAt == nil {
		return nil
	}
	reverseCharge, err := s.accountSvc.ReverseCharge(ctx, contract.AccountID)
	if err != nil {
		return err
	}
	paidThrough := contract.LastInvoiceAt.AddDate(0, 0, contract.InvoicePeriod)

	switch contract.Type {
	case contractdomain.TypePrePay:
		// Credit the unconsumed remainder of the prepaid-for period.
		factor := contractdomain.ProrationFactor(*contract, now, paidThrough)
		if factor.LessThanOrEqual(decimal.Zero) {
			return nil
		}
		positions, err := s.Positions(ctx, contract.ID)
		if err != nil {
			return err
		}
		negated := make([]position.Position, 0, len(positions))
		for _, p := range positions {
			n := p.Negated()
			n.Amount = n.Amount.Mul(factor)
			negated = append(negated, n)
		}
		if len(negated) == 0 {
			return nil
		}
		credit, err := s.invoiceSvc.Create(ctx, tx, invoicedomain.CreateRequest{
			OrgID:         contract.OrgID,
			AccountID:     contract.AccountID,
			TypeID:        contract.InvoiceTypeID,
			ContractID:    &contract.ID,
			Positions:     negated,
			ReverseCharge: reverseCharge,
			Status:        invoicedomain.StatusRefund,
			PeriodStart:   &now,
			PeriodEnd:     &paidThrough,
		})
		if err != nil {
			return err
		}
		if err := s.invoiceSvc.Archive(ctx, tx, &credit, now); err != nil {
			return err
		}
		return s.invoiceSvc.Finalize(ctx, tx, &credit)

	case contractdomain.TypePostPay:
		// Bill the elapsed partial period before coverage ends.
		factor := contractdomain.ProrationFactor(*contract, *contract.LastInvoiceAt, now)
		if factor.LessThanOrEqual(decimal.Zero) {
			return nil
		}
		billable, err := s.elapsedPositions(ctx, contract, *contract.LastInvoiceAt, now, factor)
		if err != nil {
			return err
		}
		if len(billable) == 0 {
			return nil
		}
		if _, err := s.archiveInvoice(ctx, tx, contract, billable, reverseCharge, invoicedomain.StatusUnpaid, now, *contract.LastInvoiceAt, now); err != nil {
			return err
		}
		return s.advanceCursor(ctx, tx, contract, now, nil)

	case contractdomain.TypePrepaidAuto, contractdomain.TypePrepaidManual:
		// Return the unconsumed remainder of the paid window to the balance.
		positions, err := s.Positions(ctx, contract.ID)
		if err != nil {
			return err
		}
		factor := contractdomain.ProrationFactor(*contract, now, paidThrough)
		if factor.LessThanOrEqual(decimal.Zero) {
			return nil
		}
		gross := position.SumDiscountedGross(positions, reverseCharge)
		refund := gross.Mul(factor)
		if refund.LessThanOrEqual(decimal.Zero) {
			return nil
		}
		return s.prepaidSvc.Credit(ctx, tx, contract.AccountID, refund, prepaiddomain.ReasonRefund, nil)
	}
	return nil
}

func (s *Service) RevokeCancellation(ctx context.Context, contract *contractdomain.Contract) error {
	now := s.clock.Now()
	if !contract.CancellationActive() {
		return contractdomain.ErrNotCancelled
	}
	if !now.Before(*contract.CancelledTo) {
		return contractdomain.ErrCancellationOver
	}
	contract.CancellationRevokedAt = &now
	return s.contractRepo.Update(ctx, contract.ID.String(), map[string]any{
		"cancellation_revoked_at": now,
		"updated_at":              now,
	})
}
