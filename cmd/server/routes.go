package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"kyc-wallet.backend/internal/interfaces/http/handlers"
	"kyc-wallet.backend/internal/interfaces/http/middleware"
	"kyc-wallet.backend/pkg/metrics"
)

const (
	serviceName    = "kyc-wallet-backend"
	serviceVersion = "0.1.0"
)

type routeDeps struct {
	sessionHandler *handlers.SessionHandler
	walletHandler  *handlers.WalletHandler
	rewardHandler  *handlers.RewardHandler
	idempotency    gin.HandlerFunc
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerAPIV1Routes(r, d)
	return r
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Idempotency-Hit")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	idempotency := d.idempotency
	if idempotency == nil {
		idempotency = func(c *gin.Context) { c.Next() }
	}

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", d.sessionHandler.CreateSession)
			sessions.GET("/:id", d.sessionHandler.GetSession)
			sessions.POST("/:id/intents", d.sessionHandler.DispatchIntent)

			sessions.GET("/:id/captures/:slot", d.sessionHandler.GetCapture)
			sessions.POST("/:id/captures/:slot/start", d.sessionHandler.StartCapture)
			sessions.POST("/:id/captures/:slot/snapshot", d.sessionHandler.SnapshotCapture)
			sessions.POST("/:id/captures/:slot/retake", d.sessionHandler.RetakeCapture)
			sessions.POST("/:id/captures/:slot/commit", d.sessionHandler.CommitCapture)
			sessions.POST("/:id/captures/:slot/cancel", d.sessionHandler.CancelCapture)
			sessions.POST("/:id/captures/:slot/torch", d.sessionHandler.SetTorch)
			sessions.POST("/:id/documents/:side/upload", d.sessionHandler.UploadDocument)

			sessions.GET("/:id/wallet", d.walletHandler.GetWallet)
			sessions.GET("/:id/wallet/qr", d.walletHandler.GetWalletQR)

			sessions.POST("/:id/rewards/:rewardId/redeem", idempotency, d.rewardHandler.Redeem)
		}

		v1.GET("/rewards", d.rewardHandler.ListRewards)
		v1.POST("/redemptions/scan", idempotency, d.rewardHandler.RedeemByQR)
	}
}
