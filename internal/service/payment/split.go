// Package payment 提供支付与分账服务
package payment

import (
	"github.com/quickmech/quickmech-backend/internal/common/config"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
)

// FeeBasis 抽成基数
const (
	FeeBasisLabor  = "labor"  // 仅对工时费抽成（英国模式）
	FeeBasisAmount = "amount" // 对订单总额抽成（巴西模式）
)

// SplitResult 分账结果（三方金额之和恒等于实收金额）
type SplitResult struct {
	ChargeAmount      float64 `json:"charge_amount"`      // 本次实收金额
	LaborAmount       float64 `json:"labor_amount"`       // 工时费
	PlatformFee       float64 `json:"platform_fee"`       // 平台佣金
	MechanicEarnings  float64 `json:"mechanic_earnings"`  // 技师收益
	AutopartsEarnings float64 `json:"autoparts_earnings"` // 配件店收益
}

// Split 计算最终支付的三方分账
//
// 工时费 = 总额 - 配件价 - 上门费；配件价全额归配件店；
// 预约金已支付时先从总额扣除再分账；平台佣金取余数，保证三方之和与实收一致
func Split(market config.MarketConfig, amount, travelFee, partPrice float64, prebookingPaid bool) SplitResult {
	chargeAmount := amount
	if prebookingPaid {
		chargeAmount -= market.PrebookingAmount
	}
	if chargeAmount < 0 {
		chargeAmount = 0
	}

	laborAmount := utils.RoundMoney(chargeAmount - partPrice - travelFee)
	if laborAmount < 0 {
		laborAmount = 0
	}

	var platformFee float64
	switch market.FeeBasis {
	case FeeBasisAmount:
		platformFee = market.BaseFee + market.LaborFeeRate*chargeAmount
	default:
		platformFee = market.BaseFee + market.LaborFeeRate*laborAmount
	}
	platformFee = utils.RoundMoney(platformFee)

	autopartsEarnings := utils.RoundMoney(partPrice)
	mechanicEarnings := utils.RoundMoney(laborAmount + travelFee - platformFee)
	if mechanicEarnings < 0 {
		mechanicEarnings = 0
	}

	chargeAmount = utils.RoundMoney(chargeAmount)
	// 平台取余数，吸收舍入差
	platformFee = utils.RoundMoney(chargeAmount - mechanicEarnings - autopartsEarnings)

	return SplitResult{
		ChargeAmount:      chargeAmount,
		LaborAmount:       laborAmount,
		PlatformFee:       platformFee,
		MechanicEarnings:  mechanicEarnings,
		AutopartsEarnings: autopartsEarnings,
	}
}

// PrebookingSplit 预约金分账：全额归平台，技师与配件店无份额
func PrebookingSplit(market config.MarketConfig) SplitResult {
	amount := utils.RoundMoney(market.PrebookingAmount)
	return SplitResult{
		ChargeAmount: amount,
		PlatformFee:  amount,
	}
}
