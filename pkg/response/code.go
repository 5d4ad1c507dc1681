package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 用户模块错误 100xx
	ErrUserExists   = 10001
	ErrUserNotFound = 10002
	ErrAuthFailed   = 10003
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005
	ErrResetToken   = 10006

	// 商品模块错误 200xx
	ErrProductNotFound   = 20001
	ErrInsufficientStock = 20002

	// 订单/支付模块错误 300xx
	ErrOrderNotFound        = 30001
	ErrInvalidTransition    = 30002
	ErrPaymentInit          = 30003
	ErrPaymentVerifyFailed  = 30004
	ErrUnsupportedPayMethod = 30005
	ErrStockConflict        = 30006
	ErrOrderNotPayable      = 30007

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
