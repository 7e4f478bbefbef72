package handler

import (
	"feeledger/internal/config"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware(cfg.CORS.AllowOrigins))

	// 学生注册相关
	enrollment := r.Group("/enrollment/:id")
	{
		enrollment.GET("/fees_information", h.GetFeesInformation)
		enrollment.POST("/payment_transactions", h.InitiatePayment)
		enrollment.GET("/transaction_history", h.GetTransactionHistory)
	}

	// 交易相关
	transactions := r.Group("/transactions")
	{
		transactions.POST("/:transaction_id", h.ApplyGatewayCallback)
		transactions.GET("/:transaction_id", h.GetTransaction)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
