package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/safar/go-shop-backend/internal/config"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/metrics"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	log.Info("connected to database")

	srv := &server{
		db:      db,
		log:     log,
		metrics: metrics.NewRegistry(),
	}

	router := mux.NewRouter()
	router.Use(srv.logRequests)

	router.HandleFunc("/basket", srv.handleGetBasket).Methods(http.MethodGet)
	router.HandleFunc("/basket", srv.handleAddToBasket).Methods(http.MethodPost)
	router.HandleFunc("/basket", srv.handleRemoveFromBasket).Methods(http.MethodDelete)

	router.HandleFunc("/orders", srv.handleCreateOrder).Methods(http.MethodPost)
	router.HandleFunc("/orders", srv.handleListOrders).Methods(http.MethodGet)
	router.HandleFunc("/orders/{id:[0-9]+}", srv.handleGetOrder).Methods(http.MethodGet)
	router.HandleFunc("/orders/{id:[0-9]+}", srv.handleConfirmOrder).Methods(http.MethodPost)

	router.HandleFunc("/payment/{id:[0-9]+}", srv.handlePayment).Methods(http.MethodPost)

	router.HandleFunc("/profile", srv.handleGetProfile).Methods(http.MethodGet)
	router.HandleFunc("/profile", srv.handleSaveProfile).Methods(http.MethodPost)

	router.HandleFunc("/products/{id:[0-9]+}/reviews", srv.handleCreateReview).Methods(http.MethodPost)
	router.HandleFunc("/products/{id:[0-9]+}/reviews", srv.handleListReviews).Methods(http.MethodGet)

	router.Handle("/metrics", srv.metrics.Handler()).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.WithField("port", cfg.Server.Port).Info("server starting")
	if err := httpServer.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
