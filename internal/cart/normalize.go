package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Vkt5451/Main-Street-2026-Backend/domain"
)

var (
	ErrEmptyCart = errors.New("cart is empty, nothing to checkout")
	ErrBadItem   = errors.New("invalid cart item")
)

// RawItem is an unvalidated cart line as parsed from the request body.
// Price may arrive as a JSON number or as a currency string like "$12.50";
// decode the body with UseNumber so numeric prices keep their exact
// decimal form.
type RawItem struct {
	Name     string   `json:"name"`
	Price    any      `json:"price"`
	Quantity int32    `json:"quantity"`
	Options  []string `json:"options,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// Normalize validates the raw cart and converts it into the priced
// snapshot stored on the order. Pure function, no side effects.
func Normalize(items []RawItem) ([]domain.OrderItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	normalized := make([]domain.OrderItem, 0, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("item %d has no name: %w", i, ErrBadItem)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("item %d has quantity %d: %w", i, item.Quantity, ErrBadItem)
		}
		cents, err := priceCents(item.Price)
		if err != nil {
			return nil, fmt.Errorf("item %d: %v: %w", i, err, ErrBadItem)
		}
		normalized = append(normalized, domain.OrderItem{
			Name:           strings.TrimSpace(item.Name),
			UnitPriceCents: cents,
			Quantity:       item.Quantity,
			Options:        item.Options,
			Note:           item.Note,
		})
	}
	return normalized, nil
}

func priceCents(price any) (int64, error) {
	switch p := price.(type) {
	case json.Number:
		return decimalCents(p.String())
	case string:
		return decimalCents(stripCurrency(p))
	case float64:
		// only reached when the body was decoded without UseNumber
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, fmt.Errorf("price %v is not a non-negative number", p)
		}
		return int64(math.RoundToEven(p * 100)), nil
	case int:
		if p < 0 {
			return 0, fmt.Errorf("price %d is negative", p)
		}
		return int64(p) * 100, nil
	case int64:
		if p < 0 {
			return 0, fmt.Errorf("price %d is negative", p)
		}
		return p * 100, nil
	case nil:
		return 0, errors.New("price is missing")
	default:
		return 0, fmt.Errorf("price has unsupported type %T", price)
	}
}

// stripCurrency drops currency symbols and thousands separators, so
// "$12.50" and "1,234.50 USD" both parse. The sign survives; a negative
// price must fail, not silently turn positive.
func stripCurrency(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decimalCents converts a plain decimal string to integer cents without
// going through floating point. Fractions beyond two digits round
// half-to-even so repeated recomputation never drifts.
func decimalCents(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("price is empty")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("price %q is negative", s)
	}

	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return 0, fmt.Errorf("price %q is not a number", s)
		}
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("price %q is not a number", s)
	}

	var cents int64
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("price %q is not a number", s)
		}
		cents = cents*10 + int64(r-'0')
		if cents > math.MaxInt64/100 {
			return 0, fmt.Errorf("price %q is too large", s)
		}
	}
	cents *= 100

	for i, r := range fracPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("price %q is not a number", s)
		}
		if i == 0 {
			cents += int64(r-'0') * 10
		} else if i == 1 {
			cents += int64(r - '0')
		}
	}

	if len(fracPart) > 2 {
		cents += roundHalfEven(cents, fracPart[2:])
	}
	return cents, nil
}

// roundHalfEven decides whether the sub-cent remainder rounds the cent up.
func roundHalfEven(cents int64, rest string) int64 {
	first := rest[0]
	switch {
	case first > '5':
		return 1
	case first < '5':
		return 0
	}
	for _, r := range rest[1:] {
		if r != '0' {
			return 1
		}
	}
	// exactly half a cent: round to the even cent
	if cents%2 != 0 {
		return 1
	}
	return 0
}
