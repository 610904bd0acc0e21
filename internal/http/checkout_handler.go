package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/localstore"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/state"
	"github.com/go-chi/chi/v5"
	"github.com/unrolled/render"
)

const completePath = "/checkout/complete"

type CheckoutHandler struct {
	render    *render.Render
	store     *localstore.Store
	carts     state.CartStore
	orders    checkout.OrderCreator
	payments  payment.Confirmer
	screen    checkout.ScreenConfig
	publicURL string
	timeout   time.Duration

	inflight sync.Map // session id -> struct{}
}

// NewCheckoutHandler serves the checkout pages. publicURL is the storefront's
// external origin, used for the bank authentication return link.
func NewCheckoutHandler(
	r *render.Render,
	store *localstore.Store,
	carts state.CartStore,
	orders checkout.OrderCreator,
	payments payment.Confirmer,
	screen checkout.ScreenConfig,
	publicURL string,
	timeout time.Duration,
) *CheckoutHandler {
	return &CheckoutHandler{
		render:    r,
		store:     store,
		carts:     carts,
		orders:    orders,
		payments:  payments,
		screen:    screen,
		publicURL: strings.TrimRight(publicURL, "/"),
		timeout:   timeout,
	}
}

type thankYouPage struct {
	Order    domain.PlacedOrder
	Currency string
}

func (h *CheckoutHandler) session(r *http.Request) *state.Session {
	return state.NewSession(getSessionID(r.Context()), getIdentity(r.Context()), h.carts, h.store)
}

func (h *CheckoutHandler) newForm(screen *checkout.Screen, st *state.Session) *checkout.Form {
	return screen.NewForm(st, checkout.Deps{
		Orders:   h.orders,
		Payments: h.payments,
		Storage:  h.store.Session(st.SessionID()),
		Events:   h.store,
	})
}

// claim marks the session's checkout as running. It fails while another
// request of the same session is placing or completing an order.
func (h *CheckoutHandler) claim(sessionID string) (release func(), ok bool) {
	if _, busy := h.inflight.LoadOrStore(sessionID, struct{}{}); busy {
		return nil, false
	}
	return func() { h.inflight.Delete(sessionID) }, true
}

// GET /checkout
func (h *CheckoutHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	screen, err := checkout.NewScreen(ctx, h.session(r), h.screen)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Msg("failed to build checkout screen")
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	if m := r.URL.Query().Get("method"); m != "" {
		if method, errParse := domain.ParsePaymentMethod(m); errParse == nil {
			screen.Method = method
		}
	}

	h.renderCheckout(w, r, http.StatusOK, screen)
}

// POST /checkout
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	log := logger.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	st := h.session(r)
	screen, err := checkout.NewScreen(ctx, st, h.screen)
	if err != nil {
		log.Error().Err(err).Msg("failed to build checkout screen")
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	fields := checkout.Fields{
		Name:    strings.TrimSpace(r.PostFormValue("name")),
		Phone:   strings.TrimSpace(r.PostFormValue("phone")),
		Address: strings.TrimSpace(r.PostFormValue("address")),
		Card: payment.CardDetails{
			PaymentMethodID: r.PostFormValue("payment_method_id"),
			ReturnURL:       h.publicURL + completePath,
		},
	}
	screen.Fields = checkout.Fields{Name: fields.Name, Phone: fields.Phone, Address: fields.Address}

	release, ok := h.claim(st.SessionID())
	if !ok {
		log.Warn().Err(checkout.ErrSubmitInProgress).Msg("checkout submitted twice")
		screen.Loading = true
		h.renderCheckout(w, r, http.StatusConflict, screen)
		return
	}
	defer release()

	form := h.newForm(screen, st)

	if err := form.SelectPaymentMethod(domain.PaymentMethod(r.PostFormValue("payment_method"))); err != nil {
		log.Error().Err(err).Msg("checkout submitted with unknown payment method")
		h.renderCheckout(w, r, http.StatusUnprocessableEntity, screen)
		return
	}

	receipt, err := form.Submit(ctx, fields)
	screen.Track(form)
	if err != nil {
		h.renderCheckout(w, r, submitStatus(err), screen)
		return
	}

	http.Redirect(w, r, receipt.Redirect, http.StatusSeeOther)
}

// GET /checkout/complete?payment_intent=...
// The payment provider sends the shopper here after a bank authentication challenge.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	log := logger.FromContext(ctx)

	st := h.session(r)
	screen, err := checkout.NewScreen(ctx, st, h.screen)
	if err != nil {
		log.Error().Err(err).Msg("failed to build checkout screen")
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	release, ok := h.claim(st.SessionID())
	if !ok {
		log.Warn().Err(checkout.ErrSubmitInProgress).Msg("checkout completed twice")
		screen.Loading = true
		h.renderCheckout(w, r, http.StatusConflict, screen)
		return
	}
	defer release()

	form := h.newForm(screen, st)
	receipt, err := form.CompleteAuthentication(ctx, r.URL.Query().Get("payment_intent"))
	if errors.Is(err, checkout.ErrNoPendingPayment) {
		log.Warn().Err(err).Msg("nothing to complete")
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
		return
	}
	screen.Track(form)
	if err != nil {
		h.renderCheckout(w, r, submitStatus(err), screen)
		return
	}

	http.Redirect(w, r, receipt.Redirect, http.StatusSeeOther)
}

func submitStatus(err error) int {
	switch {
	case checkout.IsInputError(err):
		return http.StatusUnprocessableEntity
	case checkout.IsPaymentError(err):
		return http.StatusPaymentRequired
	default:
		return http.StatusBadGateway
	}
}

func (h *CheckoutHandler) renderCheckout(w http.ResponseWriter, r *http.Request, status int, screen *checkout.Screen) {
	if err := h.render.HTML(w, status, tmplCheckout, screen); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("failed to render checkout")
	}
}

// GET /thank-you/order/{order_id}
func (h *CheckoutHandler) ThankYou(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	log := logger.FromContext(ctx)

	id := domain.OrderID(chi.URLParam(r, "order_id"))
	st := h.session(r)

	order, err := h.recentOrder(ctx, st.SessionID())
	if err != nil && !errors.Is(err, localstore.ErrKeyNotFound) {
		log.Warn().Err(err).Msg("failed to read recent order")
	}
	if order == nil || order.ID != id {
		order, err = h.store.FindOrder(ctx, st.OwnerKey(), id)
		if errors.Is(err, localstore.ErrOrderNotFound) {
			h.renderPage(w, r, http.StatusNotFound, tmplNotFound, nil)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("order_id", id.String()).Msg("failed to load order")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	h.renderPage(w, r, http.StatusOK, tmplThankYou, thankYouPage{Order: *order, Currency: h.screen.Currency})
}

func (h *CheckoutHandler) recentOrder(ctx context.Context, sessionID string) (*domain.PlacedOrder, error) {
	raw, err := h.store.Session(sessionID).GetItem(ctx, localstore.RecentOrderKey)
	if err != nil {
		return nil, err
	}
	var order domain.PlacedOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (h *CheckoutHandler) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	if err := h.render.HTML(w, status, name, data); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Str("template", name).Msg("failed to render page")
	}
}
