package repository

import (
	"time"

	"gorm.io/gorm"

	"ipgconnect/internal/models"
	"ipgconnect/internal/notification"
)

// CallbackRepository handles verified callback records.
type CallbackRepository struct {
	db *gorm.DB
}

func NewCallbackRepository(db *gorm.DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

// Create stores a verified callback.
func (r *CallbackRepository) Create(record *models.CallbackRecord) error {
	return r.db.Create(record).Error
}

// MarkRelayed stamps the time the outcome was accepted by order processing.
func (r *CallbackRepository) MarkRelayed(id uint, at time.Time) error {
	return r.db.Model(&models.CallbackRecord{}).Where("id = ?", id).Update("relayed_at", at).Error
}

// FindAll returns callbacks with pagination and search.
func (r *CallbackRepository) FindAll(limit, page int, query string) ([]models.CallbackRecord, int64, error) {
	var records []models.CallbackRecord
	var total int64

	db := r.db.Model(&models.CallbackRecord{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("order_id LIKE ? OR status LIKE ? OR gateway_status LIKE ? OR approval_code LIKE ?",
			search, search, search, search)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("received_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// FindLatestByOrderID returns the most recent callback for an order.
func (r *CallbackRepository) FindLatestByOrderID(orderID string) (*models.CallbackRecord, error) {
	var record models.CallbackRecord
	if err := r.db.Where("order_id = ?", orderID).Order("received_at DESC").First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindStalePending returns orders whose latest callback is still pending and
// older than cutoff.
func (r *CallbackRepository) FindStalePending(cutoff time.Time) ([]models.CallbackRecord, error) {
	var records []models.CallbackRecord
	err := r.stalePendingQuery(cutoff).Find(&records).Error
	return records, err
}

func (r *CallbackRepository) stalePendingQuery(cutoff time.Time) *gorm.DB {
	latest := r.db.Model(&models.CallbackRecord{}).
		Select("MAX(id)").
		Group("order_id")
	return r.db.
		Where("id IN (?)", latest).
		Where("status = ? AND received_at < ?", notification.StatusPending.String(), cutoff).
		Order("received_at ASC")
}

// FindUnrelayed returns up to limit stored callbacks received before cutoff
// that order processing has not acknowledged yet, oldest first.
func (r *CallbackRepository) FindUnrelayed(cutoff time.Time, limit int) ([]models.CallbackRecord, error) {
	var records []models.CallbackRecord
	err := r.unrelayedQuery(cutoff, limit).Find(&records).Error
	return records, err
}

func (r *CallbackRepository) unrelayedQuery(cutoff time.Time, limit int) *gorm.DB {
	if limit <= 0 {
		limit = 100
	}
	return r.db.
		Where("relayed_at IS NULL AND received_at < ?", cutoff).
		Order("received_at ASC").
		Limit(limit)
}

// DeleteOlderThan purges callbacks received before cutoff.
func (r *CallbackRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("received_at < ?", cutoff).Delete(&models.CallbackRecord{})
	return res.RowsAffected, res.Error
}
