package routes

import (
	"github.com/gin-gonic/gin"

	"storefront/controllers"
	"storefront/middleware"
)

func RegisterRoutes(r *gin.Engine, orders *controllers.OrderController) {

	api := r.Group("/api")
	{
		api.POST("/register", controllers.Register)
		api.POST("/login", controllers.Login)
		api.POST("/logout", controllers.Logout)

		api.GET("/products", controllers.GetProductsPublic)
		api.GET("/products/:id", controllers.GetProductByID)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/orders", orders.ListOrders)
			protected.GET("/orders/:id", orders.GetOrder)
			protected.POST("/payment/dummy", orders.Checkout)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.POST("/products", controllers.CreateProduct)
				admin.PUT("/products/:id", controllers.UpdateProduct)
				admin.DELETE("/products/:id", controllers.DeleteProduct)
				admin.GET("/products", controllers.GetProductsAdmin)

				admin.GET("/orders", controllers.GetOrdersAdmin)
				admin.GET("/orders/:id", controllers.GetOrderByIDAdmin)
				admin.PUT("/orders/:id/status", orders.UpdateOrderStatus)
			}
		}
	}
}
