package repository

import (
	"context"
	"errors"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/dto"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

// CajaRepository persists till session snapshots. Save/Load round-trip every
// field; operations are insert-only.
type CajaRepository interface {
	Save(ctx context.Context, s *model.TillSession) error
	// Load returns the open session of the till, or its most recent one.
	Load(ctx context.Context, tillID string) (*model.TillSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.TillSession, error)
	ListSessions(ctx context.Context, filter dto.SessionFilter) ([]model.TillSession, int64, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) Save(ctx context.Context, s *model.TillSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := *s
		row.Operations = nil
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
			Create(&row).Error; err != nil {
			return err
		}
		if len(s.Operations) == 0 {
			return nil
		}
		ops := make([]model.CashOperation, len(s.Operations))
		copy(ops, s.Operations)
		// Already persisted operations are left untouched.
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(ops, 100).Error
	})
}

func (r *cajaRepo) Load(ctx context.Context, tillID string) (*model.TillSession, error) {
	var s model.TillSession
	err := r.withOperations(ctx).
		Where("till_id = ?", tillID).
		Order("CASE WHEN status = 'open' THEN 0 ELSE 1 END").
		Order("opened_at DESC").
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	normalize(&s)
	return &s, nil
}

func (r *cajaRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.TillSession, error) {
	var s model.TillSession
	if err := r.withOperations(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	normalize(&s)
	return &s, nil
}

func (r *cajaRepo) ListSessions(ctx context.Context, filter dto.SessionFilter) ([]model.TillSession, int64, error) {
	var sessions []model.TillSession
	var total int64

	q := r.db.WithContext(ctx).Model(&model.TillSession{})
	if filter.TillID != "" {
		q = q.Where("till_id = ?", filter.TillID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (filter.Page - 1) * filter.Limit
	if err := q.Order("opened_at DESC").Offset(offset).Limit(filter.Limit).Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	for i := range sessions {
		normalize(&sessions[i])
	}
	return sessions, total, nil
}

func (r *cajaRepo) withOperations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Operations", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// normalize puts timestamps back in UTC, as the ledger writes them.
func normalize(s *model.TillSession) {
	s.OpenedAt = s.OpenedAt.UTC()
	if s.ClosedAt != nil {
		t := s.ClosedAt.UTC()
		s.ClosedAt = &t
	}
	for i := range s.Operations {
		s.Operations[i].CreatedAt = s.Operations[i].CreatedAt.UTC()
	}
}
