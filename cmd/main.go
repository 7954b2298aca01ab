package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/ConectaSur/api-referidos/internal/auth"
	"github.com/ConectaSur/api-referidos/internal/client"
	"github.com/ConectaSur/api-referidos/internal/commission"
	"github.com/ConectaSur/api-referidos/internal/invoice"
	"github.com/ConectaSur/api-referidos/internal/referral"
	"github.com/ConectaSur/api-referidos/internal/settings"
	"github.com/ConectaSur/api-referidos/internal/utils/db"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	_ = godotenv.Load()

	database, err := db.Connect()
	if err != nil {
		log.Fatal("database connection failed:", err)
	}

	if err := database.AutoMigrate(
		&settings.Settings{},
		&client.Client{},
		&referral.Referral{},
		&commission.Commission{},
		&invoice.InvoiceUpload{},
		&invoice.InvoiceRecord{},
	); err != nil {
		log.Fatal("migration failed:", err)
	}

	// Admin bootstrap: roles are never taken from registration payloads.
	if adminEmail := os.Getenv("ADMIN_EMAIL"); adminEmail != "" {
		if err := client.EnsureAdmin(database, adminEmail); err != nil {
			log.Println("admin bootstrap:", err)
		}
	}

	// Repositories and services
	settingsRepo := settings.NewRepository(database)
	commissionRepo := commission.NewRepository(database)
	commissionService := commission.NewService(commissionRepo)
	invoiceService := invoice.NewService(database)

	// Handlers
	clientHandler := client.NewHandler(database, commissionService)
	referralHandler := referral.NewHandler(database, commissionService, settingsRepo)
	commissionHandler := commission.NewHandler(commissionRepo, commissionService)
	invoiceHandler := invoice.NewHandler(invoiceService, settingsRepo)
	settingsHandler := settings.NewHandler(settingsRepo)

	// Router
	r := mux.NewRouter()

	authed := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(h)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(auth.RequireAdmin(h))
	}

	// Open routes
	r.HandleFunc("/login", clientHandler.Login).Methods("POST")
	r.HandleFunc("/clients", clientHandler.Create).Methods("POST")

	// Referrer routes
	r.Handle("/clients", authed(clientHandler.List)).Methods("GET")
	r.Handle("/clients/{id}", authed(clientHandler.Get)).Methods("GET")
	r.Handle("/clients/{id}/summary", authed(clientHandler.Summary)).Methods("GET")
	r.Handle("/clients/{id}/referrals", authed(referralHandler.Create)).Methods("POST")
	r.Handle("/clients/{id}/referrals", authed(referralHandler.ListByClient)).Methods("GET")
	r.Handle("/referrals/{id}", authed(referralHandler.Get)).Methods("GET")
	r.Handle("/referrals/{id}/commissions", authed(commissionHandler.ListByReferral)).Methods("GET")
	r.Handle("/commissions/{id}", authed(commissionHandler.Get)).Methods("GET")

	// Admin routes
	r.Handle("/clients/{id}/activate-commissions", adminOnly(clientHandler.ActivateCommissions)).Methods("POST")
	r.Handle("/referrals/{id}/status", adminOnly(referralHandler.UpdateStatus)).Methods("PUT")
	r.Handle("/commissions/{id}/apply", adminOnly(commissionHandler.Apply)).Methods("POST")
	r.Handle("/commissions/{id}/cancel", adminOnly(commissionHandler.Cancel)).Methods("POST")
	r.Handle("/invoices/upload", adminOnly(invoiceHandler.Upload)).Methods("POST")
	r.Handle("/invoices/uploads", adminOnly(invoiceHandler.ListUploads)).Methods("GET")
	r.Handle("/invoices/uploads/{id}", adminOnly(invoiceHandler.GetUpload)).Methods("GET")
	r.Handle("/invoices/uploads/{id}/records", adminOnly(invoiceHandler.ListRecords)).Methods("GET")
	r.Handle("/invoices/uploads/{id}/reprocess", adminOnly(invoiceHandler.Reprocess)).Methods("POST")
	r.Handle("/settings", adminOnly(settingsHandler.Get)).Methods("GET")
	r.Handle("/settings", adminOnly(settingsHandler.Update)).Methods("PUT")

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Println("Server running on http://localhost:" + port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
