package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// WalletRepository 钱包仓储
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByPartyID 获取钱包
func (r *WalletRepository) GetByPartyID(ctx context.Context, partyID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("party_id = ?", partyID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 获取钱包，不存在则创建
func (r *WalletRepository) GetOrCreate(ctx context.Context, partyID int64, partyType string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where(models.Wallet{PartyID: partyID}).
		Attrs(models.Wallet{PartyType: partyType}).
		FirstOrCreate(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreateTx 事务版获取或创建钱包
func (r *WalletRepository) GetOrCreateTx(tx *gorm.DB, partyID int64, partyType string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Where(models.Wallet{PartyID: partyID}).
		Attrs(models.Wallet{PartyType: partyType}).
		FirstOrCreate(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreditPendingTx 事务中入账待结算余额并落流水
func (r *WalletRepository) CreditPendingTx(tx *gorm.DB, partyID int64, amount float64, entry *models.WalletEntry) error {
	err := tx.Model(&models.Wallet{}).
		Where("party_id = ?", partyID).
		Updates(map[string]interface{}{
			"pending_balance": gorm.Expr("pending_balance + ?", amount),
			"total_earned":    gorm.Expr("total_earned + ?", amount),
		}).Error
	if err != nil {
		return err
	}
	return tx.Create(entry).Error
}

// DeductAvailableIfSufficient 余额充足时扣减可用余额
// 返回受影响行数；0 表示余额不足
func (r *WalletRepository) DeductAvailableIfSufficient(ctx context.Context, partyID int64, amount float64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("party_id = ? AND available_balance >= ?", partyID, amount).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance - ?", amount),
		})
	return result.RowsAffected, result.Error
}

// DeductAvailableIfSufficientTx 事务版余额扣减
func (r *WalletRepository) DeductAvailableIfSufficientTx(tx *gorm.DB, partyID int64, amount float64) (int64, error) {
	result := tx.Model(&models.Wallet{}).
		Where("party_id = ? AND available_balance >= ?", partyID, amount).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance - ?", amount),
		})
	return result.RowsAffected, result.Error
}

// RestoreAvailableTx 事务中返还可用余额（提现驳回）
func (r *WalletRepository) RestoreAvailableTx(tx *gorm.DB, partyID int64, amount float64, entry *models.WalletEntry) error {
	err := tx.Model(&models.Wallet{}).
		Where("party_id = ?", partyID).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance + ?", amount),
		}).Error
	if err != nil {
		return err
	}
	return tx.Create(entry).Error
}

// MarkPaidOutTx 事务中累计已提现金额（打款完成）
func (r *WalletRepository) MarkPaidOutTx(tx *gorm.DB, partyID int64, amount float64) error {
	return tx.Model(&models.Wallet{}).
		Where("party_id = ?", partyID).
		Updates(map[string]interface{}{
			"total_paid_out": gorm.Expr("total_paid_out + ?", amount),
		}).Error
}

// ListMaturedEntries 获取已到期未结算的收益流水（定时结算用）
func (r *WalletRepository) ListMaturedEntries(ctx context.Context, now time.Time, limit int) ([]*models.WalletEntry, error) {
	var entries []*models.WalletEntry
	err := r.db.WithContext(ctx).
		Where("kind = ? AND settled = ? AND matures_at <= ?", models.WalletEntryKindEarning, false, now).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// SettleEntryTx 事务中将一笔到期收益从待结算转入可用
// 返回受影响行数；0 表示该流水已被其它实例结算
func (r *WalletRepository) SettleEntryTx(tx *gorm.DB, entry *models.WalletEntry) (int64, error) {
	result := tx.Model(&models.WalletEntry{}).
		Where("id = ? AND settled = ?", entry.ID, false).
		Update("settled", true)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}
	err := tx.Model(&models.Wallet{}).
		Where("party_id = ?", entry.PartyID).
		Updates(map[string]interface{}{
			"pending_balance":   gorm.Expr("pending_balance - ?", entry.Amount),
			"available_balance": gorm.Expr("available_balance + ?", entry.Amount),
		}).Error
	if err != nil {
		return 0, err
	}
	return result.RowsAffected, nil
}

// CreateEntry 写入钱包流水
func (r *WalletRepository) CreateEntry(ctx context.Context, entry *models.WalletEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CreateEntryTx 事务中写入钱包流水
func (r *WalletRepository) CreateEntryTx(tx *gorm.DB, entry *models.WalletEntry) error {
	return tx.Create(entry).Error
}

// ListEntries 钱包流水列表
func (r *WalletRepository) ListEntries(ctx context.Context, partyID int64, offset, limit int) ([]*models.WalletEntry, int64, error) {
	var entries []*models.WalletEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WalletEntry{}).Where("party_id = ?", partyID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// DB 返回底层连接（事务编排用）
func (r *WalletRepository) DB() *gorm.DB {
	return r.db
}
