package main

import (
	"log"
	netHttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"enrollment-module/config"
	"enrollment-module/db"
	"enrollment-module/gateway"
	moduleHttp "enrollment-module/http"
	"enrollment-module/http/handlers"
	"enrollment-module/logger"
	"enrollment-module/services"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Initialize Kafka producer (non-fatal)
	services.InitProducer()

	// Initialize database
	if err := db.InitDB(); err != nil {
		logger.Fatal("Error initializing database: %v", err)
	}

	// Wire services
	store := db.NewStore()
	gw, err := gateway.NewRazorpayGateway(config.AppConfig.RazorpayKeyID, config.AppConfig.RazorpayKeySecret)
	if err != nil {
		logger.Fatal("Error initializing payment gateway: %v", err)
	}
	enrollments := services.NewEnrollments(store)
	orders := services.NewOrders(store, gw)
	notifier := services.NewSMTPNotifier(store)
	verifier := services.NewVerifier(store, gw, enrollments, notifier)
	webhooks := services.NewWebhookProcessor(store, enrollments)

	handlers.Init(orders, verifier, enrollments, webhooks, store)
	moduleHttp.SetupRoutes()

	// Start the pending-payment reconciler
	reconciler := services.NewReconciler(store, gw, enrollments)
	if err := reconciler.Start(); err != nil {
		logger.Fatal("Error starting reconciler: %v", err)
	}

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting on :%s", config.AppConfig.Port)
		log.Fatal(netHttp.ListenAndServe(":"+config.AppConfig.Port, nil))
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received, stopping reconciler and Kafka producer...")

	reconciler.Stop()
	if err := services.Close(); err != nil {
		logger.Error("Error closing Kafka producer: %v", err)
	}

	logger.Info("Server shutdown complete")
}
