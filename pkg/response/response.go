package response

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeUnavailable   = 503
	CodeBusinessError = 1000
)

// 账本业务错误码
const (
	CodeEnrollmentNotFound      = 1001
	CodeTransactionNotFound     = 1002
	CodeInvalidAmount           = 1003
	CodeMissingPaymentMethod    = 1004
	CodeMissingGatewayReference = 1005
	CodeInvalidStatus           = 1006
	CodeAlreadyFinalized        = 1007
	CodeReferenceAlreadySet     = 1008
	CodeRequestIDConflict       = 1009
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

// Accepted 异步受理，交易仍处于 PENDING
func Accepted(c *gin.Context, data interface{}) {
	JSON(c, http.StatusAccepted, data)
}

func JSON(c *gin.Context, httpStatus int, data interface{}) {
	c.JSON(httpStatus, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Fail 返回错误，HTTP 状态码与业务码分开给出
func Fail(c *gin.Context, httpStatus, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, CodeServerError, message)
}

func Unavailable(c *gin.Context, message string) {
	Fail(c, http.StatusServiceUnavailable, CodeUnavailable, message)
}

// Money 金额按两位小数输出为 JSON 数字
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
