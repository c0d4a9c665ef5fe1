package directory

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/lamanada/tickets-api/internal/models"
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func OnlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

var shirtAliases = map[string]models.ShirtSize{
	"X-G": models.ShirtXG,
	"XGG": models.ShirtXG,
}

// NormalizeShirtSize maps free input onto the six sizes, defaulting to M.
func NormalizeShirtSize(s string) models.ShirtSize {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch size := models.ShirtSize(s); size {
	case models.ShirtPP, models.ShirtP, models.ShirtM, models.ShirtG, models.ShirtGG, models.ShirtXG:
		return size
	}
	if size, ok := shirtAliases[s]; ok {
		return size
	}
	return models.ShirtM
}

// ParseBool accepts JSON booleans, numbers and the strings true/1/sim/yes.
func ParseBool(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "sim", "yes":
			return true
		}
		return false
	default:
		return ParseBool(fmt.Sprint(b))
	}
}
