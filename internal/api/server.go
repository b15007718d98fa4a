// Package api exposes the catalog, carts, bills and reports over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/safar/stockbill/internal/billing"
	"github.com/safar/stockbill/internal/models"
	"github.com/safar/stockbill/internal/store"
)

type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	Subscribe(ctx context.Context) (<-chan []models.Product, error)
}

type BillStore interface {
	GetBill(ctx context.Context, id string) (*models.Bill, error)
	DeleteBill(ctx context.Context, id string) error
	ListBills(ctx context.Context, cursor string, limit int) (*store.CursorPage, error)
	Subscribe(ctx context.Context) (<-chan []models.Bill, error)
}

type Analytics interface {
	Summary(ctx context.Context) (*models.SalesSummary, error)
	Daily(ctx context.Context, from, to string) ([]models.DailySales, error)
	TopProducts(ctx context.Context, limit int) ([]models.ProductSales, error)
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
	InventoryValue(ctx context.Context) (*models.InventoryValue, error)
}

// Deps are the collaborators of a Server. Analytics may be nil when the backend
// has no reporting queries.
type Deps struct {
	Products  ProductStore
	Bills     BillStore
	Analytics Analytics
	Carts     *billing.Registry
	Committer *billing.Committer
	Logger    logrus.FieldLogger
}

type Server struct {
	products  ProductStore
	bills     BillStore
	analytics Analytics
	carts     *billing.Registry
	committer *billing.Committer
	log       logrus.FieldLogger
}

func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		products:  deps.Products,
		bills:     deps.Bills,
		analytics: deps.Analytics,
		carts:     deps.Carts,
		committer: deps.Committer,
		log:       log,
	}
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler(serviceName string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /products", s.handleListProducts)
	mux.HandleFunc("POST /products", s.handleCreateProduct)
	mux.HandleFunc("GET /products/live", s.handleProductsLive)
	mux.HandleFunc("GET /products/{id}", s.handleGetProduct)
	mux.HandleFunc("DELETE /products/{id}", s.handleDeleteProduct)

	mux.HandleFunc("POST /carts", s.handleOpenCart)
	mux.HandleFunc("GET /carts/{id}", s.handleGetCart)
	mux.HandleFunc("DELETE /carts/{id}", s.handleCancelCart)
	mux.HandleFunc("POST /carts/{id}/lines", s.handleAddLine)
	mux.HandleFunc("PATCH /carts/{id}/lines/{ref}", s.handleUpdateLine)
	mux.HandleFunc("DELETE /carts/{id}/lines/{ref}", s.handleRemoveLine)
	mux.HandleFunc("PUT /carts/{id}/customer", s.handleSetCustomer)
	mux.HandleFunc("POST /carts/{id}/commit", s.handleCommit)

	mux.HandleFunc("GET /bills", s.handleListBills)
	mux.HandleFunc("GET /bills/live", s.handleBillsLive)
	mux.HandleFunc("GET /bills/{id}", s.handleGetBill)
	mux.HandleFunc("DELETE /bills/{id}", s.handleDeleteBill)

	mux.HandleFunc("GET /analytics/summary", s.handleSummary)
	mux.HandleFunc("GET /analytics/daily", s.handleDaily)
	mux.HandleFunc("GET /analytics/top-products", s.handleTopProducts)
	mux.HandleFunc("GET /analytics/low-stock", s.handleLowStock)
	mux.HandleFunc("GET /analytics/inventory-value", s.handleInventoryValue)

	return otelhttp.NewHandler(mux, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
