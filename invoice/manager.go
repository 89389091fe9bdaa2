package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soloflow-app/soloflow/timeentry"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNothingToBill is returned when invoice assembly finds no unbilled
// entries for the client.
var ErrNothingToBill = errors.New("no unbilled time entries for this client")

// Manager handles the database operations relating to Invoices
type Manager struct {
	db           *gorm.DB
	entryManager *timeentry.Manager
	logger       *zap.Logger
}

// NewManager returns a new Manager for invoices
func NewManager(logger *zap.Logger, db *gorm.DB, entryManager *timeentry.Manager) (*Manager, error) {
	if entryManager == nil {
		return nil, fmt.Errorf("nil entryManager is invalid")
	}
	if err := db.AutoMigrate(&Invoice{}, &Item{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize invoice.Manager")
	}
	return &Manager{
		db:           db,
		entryManager: entryManager,
		logger:       logger,
	}, nil
}

// nextNumber assigns the user's next sequential invoice number inside the
// caller's transaction. Two creates racing to the same number trip the
// unique index on (user_id, number) and one transaction fails instead of
// issuing a duplicate.
func (m *Manager) nextNumber(ctx context.Context, tx *gorm.DB, userID string) (string, error) {
	var count int64
	result := tx.WithContext(ctx).
		Model(&Invoice{}).
		Where("user_id = ?", userID).
		Count(&count)
	if result.Error != nil {
		return "", extErrors.Wrap(result.Error, "Cannot determine next invoice number")
	}
	return fmt.Sprintf("INV-%06d", count+1), nil
}

// CreateFromUnbilled assembles a draft invoice from the client's unbilled
// entries and marks those entries billed, all in one transaction.
func (m *Manager) CreateFromUnbilled(ctx context.Context, userID, clientID string, projectIDs []string, rateCents int64, currency string, now time.Time) (*Invoice, error) {
	entries, err := m.entryManager.ListUnbilledForProjects(ctx, userID, projectIDs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNothingToBill
	}

	inv := &Invoice{
		ID:       shortuuid.New(),
		UserID:   userID,
		ClientID: clientID,
		Status:   StatusDraft,
		IssuedAt: now,
		Currency: currency,
	}

	entryIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		amount := entry.Minutes * rateCents / 60
		inv.Items = append(inv.Items, Item{
			ID:          shortuuid.New(),
			InvoiceID:   inv.ID,
			TimeEntryID: entry.ID,
			Description: entry.Description,
			Minutes:     entry.Minutes,
			RateCents:   rateCents,
			AmountCents: amount,
		})
		inv.SubtotalCents += amount
		entryIDs = append(entryIDs, entry.ID)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := m.nextNumber(ctx, tx, userID)
		if err != nil {
			return err
		}
		inv.Number = number

		if result := tx.Create(inv); result.Error != nil {
			return extErrors.Wrap(result.Error, "Cannot create invoice")
		}

		return m.entryManager.MarkBilled(ctx, tx, entryIDs)
	})
	if err != nil {
		m.logger.Error("Unable to assemble invoice",
			zap.String("UserID", userID),
			zap.String("ClientID", clientID),
			zap.Error(err),
		)
		return nil, err
	}

	return inv, nil
}

// GetByID will try to return the user's invoice by id, items included
func (m *Manager) GetByID(ctx context.Context, userID, id string) (*Invoice, error) {
	var inv Invoice

	result := m.db.WithContext(ctx).
		Preload("Items").
		First(&inv, "id = ? AND user_id = ?", id, userID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get invoice by id")
	}

	return &inv, nil
}

// List returns the user's invoices without items
func (m *Manager) List(ctx context.Context, userID string) ([]Invoice, error) {
	invoices := make([]Invoice, 0)

	result := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&invoices)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list invoices")
	}

	return invoices, nil
}

// CountForMonth returns how many invoices the user issued in the month
// containing the given time.
func (m *Manager) CountForMonth(ctx context.Context, userID string, at time.Time) (int64, error) {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	end := start.AddDate(0, 1, 0)

	var count int64
	result := m.db.WithContext(ctx).
		Model(&Invoice{}).
		Where("user_id = ? AND issued_at >= ? AND issued_at < ?", userID, start, end).
		Count(&count)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return 0, extErrors.Wrap(result.Error, "Cannot count invoices for month")
	}

	return count, nil
}

func (m *Manager) setStatus(ctx context.Context, userID, id string, status Status) (*Invoice, error) {
	inv, err := m.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, nil
	}

	inv.Status = status
	result := m.db.WithContext(ctx).Model(inv).Update("status", status)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update invoice status")
	}

	return inv, nil
}

// MarkSent flags an invoice as delivered to the client
func (m *Manager) MarkSent(ctx context.Context, userID, id string) (*Invoice, error) {
	return m.setStatus(ctx, userID, id, StatusSent)
}

// MarkPaid flags an invoice as settled
func (m *Manager) MarkPaid(ctx context.Context, userID, id string) (*Invoice, error) {
	return m.setStatus(ctx, userID, id, StatusPaid)
}
