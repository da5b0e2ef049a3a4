package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router wires every endpoint onto a chi mux.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Provider callbacks sit outside the API prefix.
	r.Post("/webhooks/stripe", h.StripeWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{productId}/price", h.GetProductPrice)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{productId}", h.UpdateCartItem)
			r.Delete("/", h.ClearCart)
		})

		r.Post("/checkout", h.PlaceOrder)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Get("/{orderId}", h.GetOrder)
			r.Patch("/{orderId}/status", h.UpdateOrderStatus)
			r.Get("/{orderId}/shipments", h.GetOrderShipments)
			r.Post("/{orderId}/capture", h.CapturePayment)
		})

		r.Route("/returns", func(r chi.Router) {
			r.Get("/", h.ListReturns)
			r.Post("/", h.CreateReturn)
			r.Post("/{returnId}/approve", h.ApproveReturn)
			r.Post("/{returnId}/reject", h.RejectReturn)
		})

		r.Post("/reports", h.CreateReport)

		r.Route("/moderation", func(r chi.Router) {
			r.Get("/reports", h.ListOpenReports)
			r.Post("/reports/{reportId}/resolve", h.ResolveReport)
			r.Post("/reports/{reportId}/dismiss", h.DismissReport)
			r.Post("/reports/{reportId}/warn", h.WarnReportSubject)
			r.Post("/reports/{reportId}/remove-product", h.RemoveReportedProduct)
			r.Post("/reports/{reportId}/deactivate", h.DeactivateReportSubject)
			r.Post("/users/{userId}/reactivate", h.ReactivateUser)
			r.Post("/products/{productId}/review", h.ModerateProduct)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread", h.UnreadCount)
			r.Post("/read", h.MarkNotificationsRead)
			r.Get("/stream", h.StreamNotifications)
		})

		r.Get("/geocode", h.Geocode)
	})

	return r
}
