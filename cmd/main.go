package main

import (
	"github.com/gin-gonic/gin"

	"storefront/cache"
	"storefront/config"
	"storefront/controllers"
	"storefront/database"
	"storefront/logging"
	"storefront/payment"
	"storefront/repositories"
	"storefront/routes"
	"storefront/services"
)

func main() {

	config.LoadEnv()
	logging.Init()

	database.ConnectMongo()
	database.InitCollections()

	cache.InitBlacklist(config.GetEnv("REDIS_ADDR", "localhost:6379"))

	orderRepo := repositories.NewOrderRepo(database.OrderCollection)
	gateway := payment.NewDummyGateway()
	orderService := services.NewOrderService(orderRepo, gateway)
	orderController := controllers.NewOrderController(orderService)

	r := gin.Default()
	r.SetTrustedProxies(nil)
	r.HandleMethodNotAllowed = true
	routes.RegisterRoutes(r, orderController)

	port := config.GetEnv("PORT", "8080")
	r.Run(":" + port)
}
