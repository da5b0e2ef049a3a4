package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"marketplace/internal/cart"
	"marketplace/internal/catalog"
	"marketplace/internal/checkout"
	"marketplace/internal/geo"
	"marketplace/internal/logger"
	"marketplace/internal/marketerr"
	"marketplace/internal/moderation"
	"marketplace/internal/notify"
	"marketplace/internal/payment"
	"marketplace/internal/returns"
	"marketplace/internal/utils"
)

type Handler struct {
	Catalog       *catalog.Service
	Cart          *cart.Service
	Checkout      *checkout.Service
	Payment       *payment.Service
	Returns       *returns.Service
	Moderation    *moderation.Service
	Notifications *notify.Service
	Geocoder      *geo.Geocoder
	WebhookSecret string
	Subscriptions payment.SubscriptionStore
	Logger        *logger.Logger
}

// userID pulls the authenticated user from the request. The gateway in front
// of this service resolves tokens and forwards the identity header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case marketerr.IsValidation(err):
		status = http.StatusBadRequest
	case marketerr.IsConflict(err):
		status = http.StatusConflict
	case marketerr.IsProvider(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
	}
	h.writeJSON(w, status, utils.ErrorResponse(message, err.Error()))
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := userID(r)
	if uid == "" {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", "missing identity"))
		return "", false
	}
	return uid, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return false
	}
	return true
}

// --- Catalog ---

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.VisibleProducts(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list products", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Products", products))
}

func (h *Handler) GetProductPrice(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	h.Catalog.RecordView(r.Context(), productID)

	price, err := h.Catalog.DiscountedPrice(r.Context(), productID, time.Now())
	if err != nil {
		h.writeError(w, "Failed to price product", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Current price", map[string]string{
		"product_id": productID,
		"price":      price.StringFixed(2),
	}))
}

// --- Cart ---

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	activeCart, err := h.Cart.ActiveCart(r.Context(), uid)
	if err != nil {
		h.writeError(w, "Failed to load cart", err)
		return
	}
	items, err := h.Cart.Items(r.Context(), activeCart.ID)
	if err != nil {
		h.writeError(w, "Failed to load cart items", err)
		return
	}
	subtotal, err := h.Cart.Subtotal(r.Context(), activeCart.ID, time.Now())
	if err != nil {
		h.writeError(w, "Failed to price cart", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Cart", map[string]interface{}{
		"cart":     activeCart,
		"items":    items,
		"subtotal": subtotal.StringFixed(2),
	}))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Cart.AddItem(r.Context(), uid, req.ProductID, req.Quantity); err != nil {
		h.writeError(w, "Failed to add item", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Item added", nil))
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Cart.UpdateItem(r.Context(), uid, productID, req.Quantity); err != nil {
		h.writeError(w, "Failed to update item", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Item updated", nil))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	activeCart, err := h.Cart.ActiveCart(r.Context(), uid)
	if err != nil {
		h.writeError(w, "Failed to load cart", err)
		return
	}
	if err := h.Cart.Clear(r.Context(), activeCart.ID); err != nil {
		h.writeError(w, "Failed to clear cart", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Cart cleared", nil))
}

// --- Checkout and orders ---

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		AddressID        string `json:"address_id"`
		ShippingOptionID string `json:"shipping_option_id"`
		PaymentMethod    string `json:"payment_method"`
		PromoCode        string `json:"promo_code"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.Checkout.Checkout(r.Context(), checkout.CheckoutRequest{
		UserID:           uid,
		AddressID:        req.AddressID,
		ShippingOptionID: req.ShippingOptionID,
		PaymentMethod:    req.PaymentMethod,
		PromoCode:        req.PromoCode,
	})
	if err != nil {
		h.writeError(w, "Checkout failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Order placed", order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	orders, err := h.Checkout.OrdersByUser(r.Context(), uid)
	if err != nil {
		h.writeError(w, "Failed to list orders", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Orders", orders))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	order, items, err := h.Checkout.Order(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "Failed to load order", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order", map[string]interface{}{
		"order": order,
		"items": items,
	}))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	var req struct {
		Status string `json:"status"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Checkout.UpdateStatus(r.Context(), orderID, req.Status); err != nil {
		h.writeError(w, "Failed to update order status", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Order status updated", nil))
}

func (h *Handler) GetOrderShipments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	shipments, err := h.Checkout.SellerShipments(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "Failed to load shipments", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Shipments", shipments))
}

// --- Payment ---

func (h *Handler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	var req struct {
		MethodToken string `json:"method_token"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	chargeRef, err := h.Payment.Capture(r.Context(), orderID, req.MethodToken)
	if err != nil {
		h.writeError(w, "Payment capture failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Payment captured", map[string]string{
		"order_id":  orderID,
		"charge_id": chargeRef,
	}))
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	err := h.Payment.HandleStripeWebhook(r.Context(), r, h.WebhookSecret, h.Subscriptions)
	if err != nil {
		if webhookErr, ok := err.(*payment.WebhookError); ok {
			http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
			return
		}
		http.Error(w, "Webhook processing error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// --- Returns ---

func (h *Handler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		OrderID string `json:"order_id"`
		Reason  string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	request, err := h.Returns.Create(r.Context(), req.OrderID, uid, req.Reason)
	if err != nil {
		h.writeError(w, "Failed to create return request", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Return requested", request))
}

func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	requests, err := h.Returns.ListByUser(r.Context(), uid)
	if err != nil {
		h.writeError(w, "Failed to list returns", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Return requests", requests))
}

func (h *Handler) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	returnID := chi.URLParam(r, "returnId")
	var req struct {
		Method string `json:"method"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	refund, err := h.Returns.Approve(r.Context(), returnID, req.Method)
	if err != nil {
		h.writeError(w, "Failed to approve return", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Return refunded", refund))
}

func (h *Handler) RejectReturn(w http.ResponseWriter, r *http.Request) {
	returnID := chi.URLParam(r, "returnId")
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	request, err := h.Returns.Reject(r.Context(), returnID, req.Reason)
	if err != nil {
		h.writeError(w, "Failed to reject return", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Return rejected", request))
}

// --- Moderation ---

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		TargetUserID string `json:"target_user_id"`
		ProductID    string `json:"product_id"`
		Reason       string `json:"reason"`
		Description  string `json:"description"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	report, err := h.Moderation.CreateReport(r.Context(), uid, req.TargetUserID, req.ProductID, req.Reason, req.Description)
	if err != nil {
		h.writeError(w, "Failed to create report", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Report filed", report))
}

func (h *Handler) ListOpenReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Moderation.OpenReports(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list reports", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Open reports", reports))
}

func (h *Handler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	reportID := chi.URLParam(r, "reportId")
	if err := h.Moderation.Resolve(r.Context(), reportID, uid); err != nil {
		h.writeError(w, "Failed to resolve report", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Report resolved", nil))
}

func (h *Handler) DismissReport(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	reportID := chi.URLParam(r, "reportId")
	if err := h.Moderation.Dismiss(r.Context(), reportID, uid); err != nil {
		h.writeError(w, "Failed to dismiss report", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Report dismissed", nil))
}

func (h *Handler) WarnReportSubject(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	reportID := chi.URLParam(r, "reportId")
	var req struct {
		Message string `json:"message"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Moderation.WarnSubject(r.Context(), reportID, uid, req.Message); err != nil {
		h.writeError(w, "Failed to warn user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Warning sent", nil))
}

func (h *Handler) RemoveReportedProduct(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	reportID := chi.URLParam(r, "reportId")
	if err := h.Moderation.RemoveProduct(r.Context(), reportID, uid); err != nil {
		h.writeError(w, "Failed to remove product", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Product removed", nil))
}

func (h *Handler) DeactivateReportSubject(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	reportID := chi.URLParam(r, "reportId")
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Moderation.DeactivateSubject(r.Context(), reportID, uid, req.Reason); err != nil {
		h.writeError(w, "Failed to deactivate user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("User deactivated", nil))
}

func (h *Handler) ReactivateUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	targetID := chi.URLParam(r, "userId")
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Moderation.ReactivateUser(r.Context(), targetID, uid, req.Reason); err != nil {
		h.writeError(w, "Failed to reactivate user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("User reactivated", nil))
}

func (h *Handler) ModerateProduct(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")
	var req struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Moderation.ModerateProduct(r.Context(), productID, uid, req.Approve, req.Reason); err != nil {
		h.writeError(w, "Failed to moderate product", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Product moderated", nil))
}

// --- Notifications ---

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	notifications, err := h.Notifications.List(r.Context(), uid, 50)
	if err != nil {
		h.writeError(w, "Failed to list notifications", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Notifications", notifications))
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	count, err := h.Notifications.UnreadCount(r.Context(), uid)
	if err != nil {
		h.writeError(w, "Failed to count unread notifications", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Unread count", map[string]int{"unread": count}))
}

func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Notifications.MarkAllRead(r.Context(), uid); err != nil {
		h.writeError(w, "Failed to mark notifications read", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Notifications marked read", nil))
}

// --- Geocoding ---

func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	location, err := h.Geocoder.Lookup(r.Context(), query)
	if err != nil {
		h.writeError(w, "Geocoding failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Location", location))
}
