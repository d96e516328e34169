// Package errors 定义业务错误码和错误处理
package errors

import (
	"fmt"
	"net/http"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// HTTPStatus 返回错误码对应的 HTTP 状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrInvalidParams.Code || e.Code == ErrUserTypeInvalid.Code || e.Code == ErrPlateInvalid.Code ||
		e.Code == ErrMarketInvalid.Code || e.Code == ErrPickupCodeInvalid.Code || e.Code == ErrPayoutBelowMinimum.Code ||
		e.Code == ErrVehicleLimitReached.Code || e.Code == ErrCurrencyMismatch.Code || e.Code == ErrWebhookSignature.Code:
		return http.StatusBadRequest
	case (e.Code >= 2000 && e.Code < 2004) || e.Code == ErrPasswordError.Code:
		return http.StatusUnauthorized
	case e.Code == ErrPermissionDenied.Code || e.Code == ErrAccountDisabled.Code || e.Code == ErrAccountNotApproved.Code ||
		e.Code == ErrNotOrderMechanic.Code || e.Code == ErrNotOrderClient.Code || e.Code == ErrNotReservationShop.Code:
		return http.StatusForbidden
	case e.Code == ErrNotFound.Code || e.Code == ErrUserNotFound.Code || e.Code == ErrVehicleNotFound.Code ||
		e.Code == ErrOrderNotFound.Code || e.Code == ErrQuoteNotFound.Code || e.Code == ErrPartNotFound.Code ||
		e.Code == ErrReservationNotFound.Code || e.Code == ErrPaymentNotFound.Code || e.Code == ErrWalletNotFound.Code ||
		e.Code == ErrPayoutNotFound.Code || e.Code == ErrNotificationNotFound.Code:
		return http.StatusNotFound
	case e.Code == ErrAlreadyExists.Code || e.Code == ErrUserExists.Code || e.Code == ErrEmailExists.Code ||
		e.Code == ErrOrderStatusConflict.Code || e.Code == ErrOrderAlreadyTaken.Code || e.Code == ErrOrderCancelled.Code ||
		e.Code == ErrReservationConflict.Code || e.Code == ErrReservationExpired.Code || e.Code == ErrStockInsufficient.Code ||
		e.Code == ErrPrebookingDone.Code || e.Code == ErrPaymentNotPaid.Code || e.Code == ErrAlreadyReviewed.Code ||
		e.Code == ErrBalanceInsufficient.Code || e.Code == ErrPayoutStatusError.Code:
		return http.StatusConflict
	case e.Code == ErrRateLimitExceed.Code:
		return http.StatusTooManyRequests
	case e.Code == ErrExternalService.Code || e.Code == ErrPlateLookupFailed.Code || e.Code == ErrPaymentGateway.Code:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, "未知错误")
	ErrInvalidParams   = New(1001, "参数错误")
	ErrNotFound        = New(1002, "资源不存在")
	ErrAlreadyExists   = New(1003, "资源已存在")
	ErrDatabaseError   = New(1004, "数据库错误")
	ErrCacheError      = New(1005, "缓存错误")
	ErrInternalError   = New(1006, "内部错误")
	ErrExternalService = New(1007, "外部服务错误")
	ErrRateLimitExceed = New(1008, "请求过于频繁")
	ErrOperationFailed = New(1009, "操作失败")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized       = New(2000, "未登录")
	ErrTokenExpired       = New(2001, "登录已过期")
	ErrTokenInvalid       = New(2002, "无效的令牌")
	ErrTokenRefreshFail   = New(2003, "刷新令牌失败")
	ErrPermissionDenied   = New(2004, "权限不足")
	ErrAccountDisabled    = New(2005, "账号已禁用")
	ErrAccountNotApproved = New(2006, "账号待审核")
	ErrPasswordError      = New(2007, "密码错误")
)

// 用户错误码 (3000-3999)
var (
	ErrUserNotFound        = New(3000, "用户不存在")
	ErrUserExists          = New(3001, "用户已存在")
	ErrEmailExists         = New(3002, "邮箱已被注册")
	ErrUserTypeInvalid     = New(3003, "无效的用户类型")
	ErrVehicleNotFound     = New(3004, "车辆不存在")
	ErrPlateInvalid        = New(3005, "无效的车牌号")
	ErrPlateLookupFailed   = New(3006, "车牌查询失败")
	ErrVehicleLimitReached = New(3007, "车辆数量已达上限")
)

// 订单错误码 (4000-4999)
var (
	ErrOrderNotFound       = New(4000, "订单不存在")
	ErrOrderStatusConflict = New(4001, "订单状态不允许该操作")
	ErrOrderAlreadyTaken   = New(4002, "订单已被其他技师接单")
	ErrOrderCancelled      = New(4003, "订单已取消")
	ErrQuoteNotFound       = New(4004, "报价不存在")
	ErrNotOrderMechanic    = New(4005, "非本订单技师")
	ErrNotOrderClient      = New(4006, "非本订单客户")
	ErrMarketInvalid       = New(4007, "无效的市场")
	ErrAlreadyReviewed     = New(4008, "订单已评价")
)

// 配件错误码 (5000-5999)
var (
	ErrPartNotFound          = New(5000, "配件不存在")
	ErrStockInsufficient     = New(5001, "库存不足")
	ErrReservationNotFound   = New(5002, "配件预约不存在")
	ErrReservationConflict   = New(5003, "预约状态不允许该操作")
	ErrReservationExpired    = New(5004, "配件预约已过期")
	ErrPickupCodeInvalid     = New(5005, "取件码无效")
	ErrPickupCodeGenFailed   = New(5006, "取件码生成失败")
	ErrNotReservationShop    = New(5007, "非本预约的配件店")
)

// 支付错误码 (6000-6999)
var (
	ErrPaymentNotFound    = New(6000, "支付记录不存在")
	ErrPaymentFailed      = New(6001, "支付失败")
	ErrPaymentGateway     = New(6002, "支付网关错误")
	ErrPaymentNotPaid     = New(6003, "支付未完成")
	ErrPrebookingDone     = New(6004, "预约金已支付")
	ErrSplitMismatch      = New(6005, "分账金额不一致")
	ErrWebhookSignature   = New(6006, "回调签名校验失败")
	ErrCurrencyMismatch   = New(6007, "币种不匹配")
)

// 钱包错误码 (7000-7999)
var (
	ErrWalletNotFound      = New(7000, "钱包不存在")
	ErrBalanceInsufficient = New(7001, "余额不足")
	ErrPayoutNotFound      = New(7002, "提现申请不存在")
	ErrPayoutStatusError   = New(7003, "提现状态异常")
	ErrPayoutBelowMinimum  = New(7004, "提现金额低于最低限额")
)

// 通知与聊天错误码 (8000-8999)
var (
	ErrNotificationNotFound = New(8000, "通知不存在")
	ErrChatPeerOffline      = New(8001, "对方不在线")
	ErrChatUpgradeFailed    = New(8002, "WebSocket 升级失败")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
