// Package order 提供服务订单状态机
package order

import (
	"github.com/quickmech/quickmech-backend/internal/models"
)

// transitions 订单状态机转移表
// 每个状态列出允许进入的后继状态；不在表中的转移一律拒绝
var transitions = map[string][]string{
	models.OrderStatusAwaitingMechanic: {
		models.OrderStatusAccepted,
		models.OrderStatusCancelled,
	},
	models.OrderStatusAccepted: {
		models.OrderStatusQuoteSent,
		models.OrderStatusAwaitingMechanic, // 技师退单
		models.OrderStatusCancelled,
	},
	models.OrderStatusQuoteSent: {
		models.OrderStatusApproved,
		models.OrderStatusAwaitingMechanic, // 客户拒绝报价
		models.OrderStatusCancelled,
	},
	models.OrderStatusApproved: {
		models.OrderStatusPrebooked,
		models.OrderStatusAwaitingPartHold,
		models.OrderStatusPaid,
		models.OrderStatusCancelled,
	},
	models.OrderStatusPrebooked: {
		models.OrderStatusAwaitingPartHold,
		models.OrderStatusPaid,
		models.OrderStatusCancelled,
	},
	models.OrderStatusAwaitingPartHold: {
		models.OrderStatusPartConfirmed,
		models.OrderStatusAccepted, // 配件店拒绝或预留超时，回到已接单重新选件
		models.OrderStatusCancelled,
	},
	models.OrderStatusPartConfirmed: {
		models.OrderStatusPartPickedUp,
		models.OrderStatusAccepted, // 配件店作废已确认预留，库存返还
		models.OrderStatusCancelled,
	},
	models.OrderStatusPartPickedUp: {
		models.OrderStatusPaid,
		models.OrderStatusCancelled,
	},
	models.OrderStatusPaid: {
		models.OrderStatusServiceInProgress,
	},
	models.OrderStatusServiceInProgress: {
		models.OrderStatusServiceFinished,
	},
	models.OrderStatusServiceFinished: {
		models.OrderStatusReviewed,
	},
}

// CanTransition 判断状态转移是否合法
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusesAllowing 返回所有可以转移到目标状态的前置状态
func StatusesAllowing(to string) []string {
	var from []string
	for status, nexts := range transitions {
		for _, next := range nexts {
			if next == to {
				from = append(from, status)
				break
			}
		}
	}
	return from
}

// cancellableStatuses 允许客户取消的状态，从转移表推导（支付后不可取消）
var cancellableStatuses = StatusesAllowing(models.OrderStatusCancelled)
