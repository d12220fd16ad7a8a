package app

import (
	"github.com/gorilla/mux"
)

// NewRouter builds the router with middleware and all API endpoints.
func NewRouter(deps *Dependencies) *mux.Router {
	r := mux.NewRouter()
	SetupMiddleware(r)
	RegisterRoutes(r, deps)
	return r
}

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Recurring plans
	r.HandleFunc("/recurring", deps.RecurringHandler.CreatePlan).Methods("POST")
	r.HandleFunc("/recurring", deps.RecurringHandler.ListPlans).Methods("GET")
	r.HandleFunc("/recurring/{planId}", deps.RecurringHandler.DeactivatePlan).Methods("DELETE")
	r.HandleFunc("/recurring/{planId}/transactions", deps.RecurringHandler.ListPlanTransactions).Methods("GET")

	// Transactions
	r.HandleFunc("/transactions", deps.LedgerHandler.CreateTransaction).Methods("POST")
	r.HandleFunc("/transactions", deps.LedgerHandler.ListTransactions).Methods("GET")
	r.HandleFunc("/transactions/{transactionId}", deps.LedgerHandler.DeleteTransaction).Methods("DELETE")

	// Dashboard
	r.HandleFunc("/dashboard", deps.DashboardHandler.GetDashboard).Methods("GET")
	r.HandleFunc("/affordability-snapshot", deps.DashboardHandler.GetAffordabilitySnapshot).Methods("GET")

	// Scheduler
	r.HandleFunc("/scheduler/runs", deps.SchedulerHandler.ListRuns).Methods("GET")
	r.HandleFunc("/scheduler/run", deps.SchedulerHandler.RunNow).Methods("POST")
}
