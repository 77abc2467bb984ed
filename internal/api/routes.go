package api

import (
	"net/http"

	"flowdesk/internal/auth"
	"flowdesk/internal/db"
	"flowdesk/internal/pubsub"
	"flowdesk/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

type Dependencies struct {
	DB        *db.Pool
	Bus       *pubsub.Bus
	Log       *zap.Logger
	Lifecycle *service.LifecycleService
	Rules     *service.RuleService
	Notifier  *service.Notifier
	JWTSecret string
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(d.Log))

	jwtConfig := auth.NewJWTConfig(d.JWTSecret)
	r.Use(jwtConfig.Middleware)

	// Request endpoints
	r.Post("/requests", d.createRequest)
	r.Get("/requests", d.listRequests)
	r.Get("/requests/{id}", d.getRequest)
	r.Delete("/requests/{id}", d.archiveRequest)
	r.Get("/requests/{id}/events", d.listRequestEvents)
	r.Post("/requests/{id}/transition", d.transitionRequest)
	r.Post("/requests/{id}/assign", d.assignRequest)
	r.Post("/requests/{id}/priority", d.changePriority)
	r.Post("/requests/{id}/comments", d.addComment)
	r.Get("/requests/{id}/comments", d.listComments)

	// Company endpoints
	r.Post("/companies", d.createCompany)
	r.Get("/companies/{id}", d.getCompany)
	r.Patch("/companies/{id}/plan", d.updateCompanyPlan)
	r.Patch("/companies/{id}/status", d.updateCompanyStatus)

	// Workflow rule endpoints
	r.Post("/rules", d.createRule)
	r.Get("/rules", d.listRules)
	r.Get("/rules/{id}", d.getRule)
	r.Put("/rules/{id}", d.updateRule)
	r.Post("/rules/{id}/activate", d.activateRule)
	r.Post("/rules/{id}/deactivate", d.deactivateRule)
	r.Delete("/rules/{id}", d.deleteRule)
	r.Get("/rules/{id}/executions", d.listRuleExecutions)

	// Notification endpoints
	r.Get("/notifications", d.listNotifications)
	r.Post("/notifications/{id}/read", d.markNotificationRead)
	r.Get("/notification-preferences", d.getPreferences)
	r.Put("/notification-preferences", d.updatePreferences)

	return r
}
