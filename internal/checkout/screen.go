package checkout

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/state"
	"github.com/shopspring/decimal"
)

type ScreenConfig struct {
	// APIURL is the origin product images are served from.
	APIURL         string
	PublishableKey string
	Currency       string
}

type Line struct {
	Name      string
	Quantity  int
	UnitPrice string
	Subtotal  string
	ImageURL  string
}

type MethodOption struct {
	Value    domain.PaymentMethod
	Label    string
	Selected bool
}

// Screen is the view model of the checkout page.
type Screen struct {
	Lines          []Line
	Total          string
	Email          string
	LoggedIn       bool
	PublishableKey string
	Currency       string
	Method         domain.PaymentMethod
	Loading        bool
	Fields         Fields

	items []domain.CartItem
	total decimal.Decimal
}

func NewScreen(ctx context.Context, st state.AppState, cfg ScreenConfig) (*Screen, error) {
	items, err := state.ActiveItems(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("load checkout items: %w", err)
	}

	loggedIn := st.IsLoggedIn()
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			Name:      item.DisplayName(loggedIn),
			Quantity:  item.Quantity,
			UnitPrice: domain.FormatAmount(item.Price),
			Subtotal:  domain.FormatAmount(item.Subtotal()),
			ImageURL:  ImageURL(cfg.APIURL, item.Image),
		})
	}

	total := domain.Total(items)
	return &Screen{
		Lines:          lines,
		Total:          domain.FormatAmount(total),
		Email:          st.UserEmail(),
		LoggedIn:       loggedIn,
		PublishableKey: cfg.PublishableKey,
		Currency:       cfg.Currency,
		Method:         domain.DefaultPaymentMethod,
		items:          items,
		total:          total,
	}, nil
}

// ImageURL resolves a stored image name against the API origin.
func ImageURL(apiURL, image string) string {
	if image == "" {
		return ""
	}
	return apiURL + "/storage/" + image
}

func (s *Screen) Empty() bool {
	return len(s.items) == 0
}

// PaymentMethods lists the options with the active one marked.
func (s *Screen) PaymentMethods() []MethodOption {
	methods := domain.PaymentMethods()
	out := make([]MethodOption, 0, len(methods))
	for _, m := range methods {
		out = append(out, MethodOption{Value: m, Label: m.Label(), Selected: m == s.Method})
	}
	return out
}

// ShowCardWidget is true while credit-card is the active method.
func (s *Screen) ShowCardWidget() bool {
	return s.Method == domain.PaymentMethodCreditCard
}

// NewForm hands the screen's items, total and selected method to a form.
func (s *Screen) NewForm(st state.AppState, deps Deps) *Form {
	f := NewForm(st, s.items, s.total, deps)
	f.method = s.Method
	return f
}

// Track copies the form's method and loading flag back for rendering.
func (s *Screen) Track(f *Form) {
	s.Method = f.PaymentMethod()
	s.Loading = f.Loading()
}
