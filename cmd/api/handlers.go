package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/safar/go-shop-backend/internal/basket"
	"github.com/safar/go-shop-backend/internal/database"
	"github.com/safar/go-shop-backend/internal/metrics"
	"github.com/safar/go-shop-backend/internal/models"
	"github.com/safar/go-shop-backend/internal/payment"
	"github.com/safar/go-shop-backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	basketCookie = "basket"
	orderCookie  = "orderId"
)

type server struct {
	db      *sql.DB
	log     *logrus.Logger
	metrics *metrics.Registry
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

// userID reads the identity the session layer (out of scope here)
// established. Absent header means an anonymous shopper.
func userID(r *http.Request) *int64 {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// anonState decodes the client-held basket value from the cookie. A
// first-time caller gets a fresh empty value.
func anonState(r *http.Request) (*basket.Anonymous, error) {
	cookie, err := r.Cookie(basketCookie)
	if err != nil {
		return basket.NewAnonymous(), nil
	}
	return basket.DecodeAnonymous(cookie.Value)
}

func (s *server) writeAnonState(w http.ResponseWriter, state *basket.Anonymous) {
	encoded, err := state.Encode()
	if err != nil {
		s.log.WithError(err).Error("encode basket state")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:   basketCookie,
		Value:  encoded,
		Path:   "/",
		MaxAge: 360000000,
	})
}

// basketSource picks the durable or the client-held basket for this
// request. For an authenticated shopper with a non-empty anonymous
// value it first merges the anonymous basket in, which clears it.
func (s *server) basketSource(ctx context.Context, w http.ResponseWriter, r *http.Request) (basket.Source, *basket.Anonymous, error) {
	state, err := anonState(r)
	if err != nil {
		return nil, nil, err
	}

	uid := userID(r)
	if uid == nil {
		return basket.NewAnonymousSource(s.db, state), state, nil
	}

	if !state.Empty() {
		if err := basket.MergeOnLogin(ctx, s.db, *uid, state); err != nil {
			return nil, nil, err
		}
		s.writeAnonState(w, state)
	}

	return basket.NewRegistered(s.db, *uid), nil, nil
}

type basketItemView struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	Count        int             `json:"count"`
	FreeDelivery bool            `json:"freeDelivery"`
}

// renderBasket resolves each line against the catalog at "now": live
// effective prices, never cached.
func (s *server) renderBasket(ctx context.Context, lines []basket.Line) ([]basketItemView, error) {
	now := time.Now()
	items := make([]basketItemView, 0, len(lines))

	for _, line := range lines {
		product, err := store.GetProduct(ctx, s.db, line.ProductID)
		if err != nil {
			if errors.Is(err, database.ErrProductNotFound) {
				continue
			}
			return nil, err
		}

		price, err := store.ResolvePrice(ctx, s.db, product, now)
		if err != nil {
			return nil, err
		}

		items = append(items, basketItemView{
			ID:           product.ID,
			Title:        product.Title,
			Price:        price,
			Count:        line.Quantity,
			FreeDelivery: product.FreeDelivery,
		})
	}

	return items, nil
}

func (s *server) respondBasket(w http.ResponseWriter, r *http.Request, src basket.Source, state *basket.Anonymous) {
	ctx := r.Context()

	lines, err := src.Lines(ctx)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	items, err := s.renderBasket(ctx, lines)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	if state != nil {
		s.writeAnonState(w, state)
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *server) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	src, state, err := s.basketSource(r.Context(), w, r)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondBasket(w, r, src, state)
}

func (s *server) handleAddToBasket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    int64 `json:"id"`
		Count int   `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Count <= 0 {
		respondError(w, http.StatusBadRequest, "count must be positive")
		return
	}

	ctx := r.Context()
	src, state, err := s.basketSource(ctx, w, r)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	if err := src.Add(ctx, req.ID, req.Count); err != nil {
		s.respondFailure(w, err)
		return
	}

	s.respondBasket(w, r, src, state)
}

func (s *server) handleRemoveFromBasket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    int64 `json:"id"`
		Count int   `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Count <= 0 {
		respondError(w, http.StatusBadRequest, "count must be positive")
		return
	}

	ctx := r.Context()
	src, state, err := s.basketSource(ctx, w, r)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	if err := src.Remove(ctx, req.ID, req.Count); err != nil {
		s.respondFailure(w, err)
		return
	}

	s.respondBasket(w, r, src, state)
}

func (s *server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req []struct {
		ID    int64 `json:"id"`
		Count int   `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req) == 0 {
		respondError(w, http.StatusBadRequest, "order must contain at least one line")
		return
	}

	items := make([]store.StockLine, 0, len(req))
	for _, line := range req {
		if line.Count <= 0 {
			respondError(w, http.StatusBadRequest, "count must be positive")
			return
		}
		items = append(items, store.StockLine{ProductID: line.ID, Quantity: line.Count})
	}

	ctx := r.Context()
	uid := userID(r)

	order, err := store.CreateOrder(ctx, s.db, uid, items)
	if err != nil {
		var stockErr *database.StockError
		if errors.As(err, &stockErr) {
			s.metrics.StockShortfalls.Inc()
			s.clampBasket(ctx, w, r, stockErr.ProductIDs)
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "some items may be out of stock, check your basket",
				"shortfalls": stockErr.ProductIDs,
			})
			return
		}
		s.respondFailure(w, err)
		return
	}

	s.metrics.OrdersCreated.Inc()

	if uid == nil {
		// The anonymous basket became the order; reset the value and
		// park the order id client-side until login binds it.
		s.writeAnonState(w, basket.NewAnonymous())
		http.SetCookie(w, &http.Cookie{
			Name:  orderCookie,
			Value: strconv.FormatInt(order.ID, 10),
			Path:  "/",
		})
	}

	respondJSON(w, http.StatusCreated, map[string]int64{"orderId": order.ID})
}

// clampBasket applies the clamp-down policy to whichever basket fed
// the failed order.
func (s *server) clampBasket(ctx context.Context, w http.ResponseWriter, r *http.Request, shortIDs []int64) {
	src, state, err := s.basketSource(ctx, w, r)
	if err != nil {
		s.log.WithError(err).Error("load basket for clamp-down")
		return
	}

	products, err := store.GetProducts(ctx, s.db, shortIDs)
	if err != nil {
		s.log.WithError(err).Error("load products for clamp-down")
		return
	}

	short := make([]*models.Product, 0, len(products))
	for _, product := range products {
		short = append(short, product)
	}

	if err := basket.ClampDown(ctx, src, short); err != nil {
		s.log.WithError(err).Error("clamp basket")
		return
	}
	if state != nil {
		s.writeAnonState(w, state)
	}
}

func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx := r.Context()

	// An order created before login rides the orderId cookie; claim it
	// on the first authenticated listing.
	if cookie, err := r.Cookie(orderCookie); err == nil {
		if orderID, err := strconv.ParseInt(cookie.Value, 10, 64); err == nil && orderID > 0 {
			if err := store.BindOrder(ctx, s.db, orderID, *uid); err != nil {
				s.respondFailure(w, err)
				return
			}
		}
		http.SetCookie(w, &http.Cookie{Name: orderCookie, Value: "", Path: "/", MaxAge: -1})
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	page, err := store.ListOrdersCursor(ctx, s.db, *uid, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := store.GetOrder(r.Context(), s.db, id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (s *server) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req struct {
		FullName     string `json:"fullName"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		City         string `json:"city"`
		Address      string `json:"address"`
		DeliveryType string `json:"deliveryType"`
		PaymentType  string `json:"paymentType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()

	recovered, err := store.ConfirmOrder(ctx, s.db, id, store.ConfirmOrderRequest{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		City:         req.City,
		Address:      req.Address,
		DeliveryType: req.DeliveryType,
		PaymentType:  req.PaymentType,
	})
	if err != nil {
		if errors.Is(err, database.ErrInsufficientStock) {
			s.metrics.StockShortfalls.Inc()
			// A registered shopper's basket was repaired inside the
			// transaction; an anonymous one lives client-side, so
			// repair the cookie value here.
			if userID(r) == nil {
				if state, stateErr := anonState(r); stateErr == nil {
					for _, line := range recovered {
						state.AddClamped(line.ProductID, line.Quantity, line.Stock)
					}
					s.writeAnonState(w, state)
				}
			}
			respondError(w, http.StatusBadRequest, "some items may be out of stock, the order was cancelled, check your basket")
			return
		}
		s.respondFailure(w, err)
		return
	}

	s.metrics.OrdersConfirmed.Inc()
	respondJSON(w, http.StatusOK, map[string]int64{"orderId": id})
}

func (s *server) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req struct {
		Number string `json:"number"`
		Month  string `json:"month"`
		Year   string `json:"year"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()

	card, err := payment.Validate(payment.Card{
		Number: req.Number,
		Month:  req.Month,
		Year:   req.Year,
		Code:   req.Code,
	}, time.Now())
	if err != nil {
		s.metrics.PaymentFailures.Inc()
		s.respondFailure(w, err)
		return
	}

	if err := store.PayOrder(r.Context(), s.db, id, card.Number, card.Month, card.Year); err != nil {
		s.metrics.PaymentFailures.Inc()
		s.respondFailure(w, err)
		return
	}

	s.metrics.OrdersPaid.Inc()
	s.metrics.PayLatencySec.Observe(time.Since(start).Seconds())
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req struct {
		Author string `json:"author"`
		Email  string `json:"email"`
		Text   string `json:"text"`
		Rate   int    `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Rate < 1 || req.Rate > 5 {
		respondError(w, http.StatusBadRequest, "rate must be between 1 and 5")
		return
	}

	ctx := r.Context()

	if _, err := store.CreateReview(ctx, s.db, id, *uid, req.Author, req.Email, req.Text, req.Rate); err != nil {
		s.respondFailure(w, err)
		return
	}

	reviews, err := store.ListReviews(ctx, s.db, id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, reviews)
}

func (s *server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	reviews, err := store.ListReviews(r.Context(), s.db, id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, reviews)
}

func (s *server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx := r.Context()
	user, err := store.GetUser(ctx, s.db, *uid)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	profile, err := store.GetProfile(ctx, s.db, user.ID)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	if profile == nil {
		profile = &models.Profile{UserID: user.ID, Email: user.Email}
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleSaveProfile stores the contact details that order confirmation
// falls back to when the shopper leaves its fields blank.
func (s *server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		FullName string `json:"fullName"`
		Phone    string `json:"phone"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if _, err := store.GetUser(ctx, s.db, *uid); err != nil {
		s.respondFailure(w, err)
		return
	}

	profile, err := store.SaveProfile(ctx, s.db, *uid, req.FullName, req.Phone, req.Email)
	if err != nil {
		s.respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
