package routes

import (
	"github.com/gin-gonic/gin"

	handlers "gofreight/internal/handlers/shared"
)

// SetupRateRoutes sets up routes for the freight rate subsystem
func SetupRateRoutes(r *gin.RouterGroup, rateHandler *handlers.RateHandler) {
	rates := r.Group("/rates")
	{
		rates.GET("", rateHandler.ListRates)
		rates.GET("/liner/:category", rateHandler.ListRatesByCategory)
		rates.GET("/:id", rateHandler.GetRate)
		rates.POST("/batch", rateHandler.CreateRateBatch)
		rates.PUT("/:id", rateHandler.UpdateRate)
		rates.DELETE("/:id", rateHandler.DeleteRate)

		// Bulk spreadsheet import
		rates.POST("/import", rateHandler.ImportRates)
		rates.GET("/import/template", rateHandler.DownloadTemplate)
	}
}
