package api

import (
	"net/http"

	"github.com/0xcafe-io/iz"
	"github.com/rs/cors"
)

// NewRouter wires every endpoint, with CORS and trace ids on top.
func NewRouter(api *Api, allowedOrigins []string) http.Handler {
	server := http.NewServeMux()
	protected := func(h func(*iz.Request) iz.Responder) http.Handler {
		return api.RequireAuth(iz.Bind(h))
	}

	// MOVEMENT ENDPOINTS.
	server.Handle("GET /movimientos", protected(api.ListMovementsHandler))          // List Movements
	server.Handle("POST /movimientos", protected(api.SaveMovementHandler))          // Create Movement
	server.Handle("PUT /movimientos/{id}", protected(api.UpdateMovementHandler))    // Update Movement
	server.Handle("DELETE /movimientos/{id}", protected(api.DeleteMovementHandler)) // Delete Movement

	// GOAL ENDPOINTS.
	server.Handle("GET /metas", protected(api.ListGoalsHandler))          // List Goals
	server.Handle("POST /metas", protected(api.SaveGoalHandler))          // Create Goal
	server.Handle("PUT /metas/{id}", protected(api.UpdateGoalHandler))    // Update Goal
	server.Handle("DELETE /metas/{id}", protected(api.DeleteGoalHandler)) // Delete Goal

	// STATISTICS ENDPOINTS.
	server.Handle("GET /dashboard", protected(api.DashboardHandler)) // Totals, categories and goal progress

	// USER ENDPOINTS.
	server.HandleFunc("POST /auth/register", iz.Bind(api.RegisterHandler)) // Create User
	server.HandleFunc("POST /auth/login", iz.Bind(api.LoginHandler))       // Login User
	server.Handle("GET /auth/me", protected(api.MeHandler))                // Current User

	// PUBLIC ENDPOINTS.
	server.HandleFunc("GET /divisas", iz.Bind(api.RatesHandler)) // Exchange Rates
	server.HandleFunc("GET /health", iz.Bind(api.HealthHandler)) // Health Check

	corsConf := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{TraceIDHeader},
	})
	return WithTraceID(corsConf.Handler(server))
}
