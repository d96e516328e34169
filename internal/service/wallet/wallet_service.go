// Package wallet 收益钱包与提现服务
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/internal/service/notification"
)

const defaultMinPayout = 20.00

// WalletService 钱包服务
type WalletService struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
	payoutRepo *repository.PayoutRepository
	notifier   notification.Notifier
	cfg        *config.Config
}

// NewWalletService 创建钱包服务
func NewWalletService(
	db *gorm.DB,
	walletRepo *repository.WalletRepository,
	payoutRepo *repository.PayoutRepository,
	notifier notification.Notifier,
	cfg *config.Config,
) *WalletService {
	return &WalletService{
		db:         db,
		walletRepo: walletRepo,
		payoutRepo: payoutRepo,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// Balance 查询钱包余额，首次访问时初始化
func (s *WalletService) Balance(ctx context.Context, partyID int64, partyType string) (*models.Wallet, error) {
	wallet, err := s.walletRepo.GetOrCreate(ctx, partyID, partyType)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return wallet, nil
}

// ListEntries 钱包流水
func (s *WalletService) ListEntries(ctx context.Context, partyID int64, page *utils.Pagination) ([]*models.WalletEntry, int64, error) {
	entries, total, err := s.walletRepo.ListEntries(ctx, partyID, page.GetOffset(), page.GetLimit())
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return entries, total, nil
}

// SettleMatured 结算所有已到期的待结算收益，返回成功结算的笔数
// 定时任务调用；单笔失败只记日志不中断
func (s *WalletService) SettleMatured(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	entries, err := s.walletRepo.ListMaturedEntries(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, apperrors.ErrDatabaseError.WithError(err)
	}

	settled := 0
	for _, entry := range entries {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			affected, err := s.walletRepo.SettleEntryTx(tx, entry)
			if err != nil {
				return err
			}
			if affected == 0 {
				// 已被其它实例结算
				return nil
			}
			remark := fmt.Sprintf("收益到期结算 #%d", entry.ID)
			return s.walletRepo.CreateEntryTx(tx, &models.WalletEntry{
				PartyID:   entry.PartyID,
				OrderID:   entry.OrderID,
				PaymentID: entry.PaymentID,
				Kind:      models.WalletEntryKindSettle,
				Amount:    entry.Amount,
				Remark:    &remark,
				Settled:   true,
			})
		})
		if err != nil {
			logger.Error("结算钱包流水失败", logger.Int64("entry_id", entry.ID), logger.Err(err))
			continue
		}
		settled++
	}
	return settled, nil
}

// PayoutRequestInput 提现申请参数
type PayoutRequestInput struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	BankAccount *string `json:"bank_account,omitempty"`
	PixKey      *string `json:"pix_key,omitempty"`
}

// RequestPayout 申请提现：冻结可用余额并创建待审核申请
func (s *WalletService) RequestPayout(ctx context.Context, partyID int64, partyType string, req *PayoutRequestInput) (*models.PayoutRequest, error) {
	minAmount := s.cfg.Business.Payout.MinAmount
	if minAmount <= 0 {
		minAmount = defaultMinPayout
	}
	if req.Amount < minAmount {
		return nil, apperrors.ErrPayoutBelowMinimum
	}

	hasPending, err := s.payoutRepo.HasPending(ctx, partyID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if hasPending {
		return nil, apperrors.ErrPayoutStatusError.WithMessage("已有待审核的提现申请")
	}

	if _, err := s.walletRepo.GetOrCreate(ctx, partyID, partyType); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	amount := utils.RoundMoney(req.Amount)
	payout := &models.PayoutRequest{
		PayoutNo:    utils.GenerateOrderNo("W"),
		PartyID:     partyID,
		Amount:      amount,
		Status:      models.PayoutStatusPending,
		BankAccount: req.BankAccount,
		PixKey:      req.PixKey,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.walletRepo.DeductAvailableIfSufficientTx(tx, partyID, amount)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperrors.ErrBalanceInsufficient
		}
		if err := s.payoutRepo.CreateTx(tx, payout); err != nil {
			return err
		}
		remark := fmt.Sprintf("提现申请 %s", payout.PayoutNo)
		return s.walletRepo.CreateEntryTx(tx, &models.WalletEntry{
			PartyID: partyID,
			Kind:    models.WalletEntryKindPayout,
			Amount:  -amount,
			Remark:  &remark,
			Settled: true,
		})
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	logger.Info("提现申请已创建",
		logger.Int64("party_id", partyID),
		logger.String("payout_no", payout.PayoutNo),
		logger.Float64("amount", amount))
	return payout, nil
}

// ApprovePayout 审核通过提现申请（管理端）
func (s *WalletService) ApprovePayout(ctx context.Context, adminID, payoutID int64) (*models.PayoutRequest, error) {
	payout, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	affected, err := s.payoutRepo.UpdateStatusCASTx(s.db.WithContext(ctx), payoutID, models.PayoutStatusPending, map[string]interface{}{
		"status":      models.PayoutStatusApproved,
		"reviewed_by": adminID,
		"reviewed_at": now,
	})
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		return nil, apperrors.ErrPayoutStatusError
	}

	s.notifier.Notify(payout.PartyID, models.NotificationKindPayout,
		"提现审核通过", fmt.Sprintf("您的提现申请 %s 已通过审核，正在安排打款", payout.PayoutNo), payout.ID)
	return s.getPayout(ctx, payoutID)
}

// MarkPayoutPaid 标记提现已打款（管理端）
func (s *WalletService) MarkPayoutPaid(ctx context.Context, adminID, payoutID int64) (*models.PayoutRequest, error) {
	payout, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.payoutRepo.UpdateStatusCASTx(tx, payoutID, models.PayoutStatusApproved, map[string]interface{}{
			"status":  models.PayoutStatusPaid,
			"paid_at": now,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperrors.ErrPayoutStatusError
		}
		return s.walletRepo.MarkPaidOutTx(tx, payout.PartyID, payout.Amount)
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	s.notifier.Notify(payout.PartyID, models.NotificationKindPayout,
		"提现已到账", fmt.Sprintf("提现 %s 金额 %s 已打款", payout.PayoutNo, utils.FormatMoney(payout.Amount)), payout.ID)
	return s.getPayout(ctx, payoutID)
}

// RejectPayout 驳回提现申请并返还冻结余额（管理端）
func (s *WalletService) RejectPayout(ctx context.Context, adminID, payoutID int64, note string) (*models.PayoutRequest, error) {
	payout, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"status":      models.PayoutStatusRejected,
			"reviewed_by": adminID,
			"reviewed_at": now,
		}
		if note != "" {
			fields["reject_note"] = note
		}
		affected, err := s.payoutRepo.UpdateStatusCASTx(tx, payoutID, models.PayoutStatusPending, fields)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperrors.ErrPayoutStatusError
		}
		remark := fmt.Sprintf("提现驳回返还 %s", payout.PayoutNo)
		return s.walletRepo.RestoreAvailableTx(tx, payout.PartyID, payout.Amount, &models.WalletEntry{
			PartyID: payout.PartyID,
			Kind:    models.WalletEntryKindRefund,
			Amount:  payout.Amount,
			Remark:  &remark,
			Settled: true,
		})
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	s.notifier.Notify(payout.PartyID, models.NotificationKindPayout,
		"提现被驳回", fmt.Sprintf("提现申请 %s 未通过审核，金额已退回钱包", payout.PayoutNo), payout.ID)
	return s.getPayout(ctx, payoutID)
}

// ListPayouts 本方提现历史
func (s *WalletService) ListPayouts(ctx context.Context, partyID int64, page *utils.Pagination) ([]*models.PayoutRequest, int64, error) {
	payouts, total, err := s.payoutRepo.ListByParty(ctx, partyID, page.GetOffset(), page.GetLimit())
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return payouts, total, nil
}

// ListAllPayouts 全量提现列表（管理端）
func (s *WalletService) ListAllPayouts(ctx context.Context, status string, page *utils.Pagination) ([]*models.PayoutRequest, int64, error) {
	payouts, total, err := s.payoutRepo.ListAll(ctx, status, page.GetOffset(), page.GetLimit())
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return payouts, total, nil
}

func (s *WalletService) getPayout(ctx context.Context, payoutID int64) (*models.PayoutRequest, error) {
	payout, err := s.payoutRepo.GetByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPayoutNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return payout, nil
}
