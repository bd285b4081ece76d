package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plantora/plantstore/internal/config"
	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/feedback"
	"github.com/plantora/plantstore/internal/handler"
	"github.com/plantora/plantstore/internal/order"
	"github.com/plantora/plantstore/internal/pricing"
	"github.com/plantora/plantstore/internal/product"
)

// NewRouter wires repositories, services and handlers over the shared pool.
func NewRouter(pool *pgxpool.Pool, pricingCfg config.PricingConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	customerRepo := customer.NewRepository(pool)
	productRepo := product.NewRepository(pool)
	orderRepo := order.NewRepository(pool)
	feedbackRepo := feedback.NewRepository(pool)

	customerSvc := customer.NewService(customerRepo)
	productSvc := product.NewService(productRepo)
	calculator := pricing.NewCalculator(pricingCfg)
	orderSvc := order.NewService(orderRepo, productRepo, customerSvc, calculator)
	feedbackSvc := feedback.NewService(feedbackRepo, orderRepo)

	handler.NewCustomerHandler(customerSvc).RegisterRoutes(r)
	handler.NewProductHandler(productSvc, customerSvc).RegisterRoutes(r)
	handler.NewOrderHandler(orderSvc, customerSvc).RegisterRoutes(r)
	handler.NewFeedbackHandler(feedbackSvc, customerSvc).RegisterRoutes(r)

	return r
}
