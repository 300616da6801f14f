package ledger

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"tripvault/db/db"
	"tripvault/libs/money"
)

const (
	maxTitleLength    = 200
	maxTripNameLength = 100
	maxTextLength     = 2000
	maxBankNameLength = 100
	maxUserIDLength   = 255
)

var (
	upiPattern      = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,256}@[a-zA-Z][a-zA-Z0-9.-]{1,63}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// isSafeIdentifier accepts identity provider subjects such as
// "google-oauth2|1234" or "user_42".
func isSafeIdentifier(s string) bool {
	if s == "" || len(s) > maxUserIDLength {
		return false
	}
	allowedSafeSymbols := map[rune]bool{
		'_': true,
		'-': true,
		'.': true,
		'@': true,
		'|': true,
		':': true,
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !allowedSafeSymbols[r] {
			return false
		}
	}
	return true
}

func verifyText(field, s string, required bool, maxLen int) (string, error) {
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", invalid(field, "is required")
	}
	if utf8.RuneCountInString(s) > maxLen {
		return "", invalid(field, "is too long")
	}
	return s, nil
}

func verifyAmount(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid("amount", "must be a finite number")
	}
	rounded := money.Round2(v)
	if rounded <= 0 {
		return 0, invalid("amount", "must be greater than 0")
	}
	return rounded, nil
}

func verifyCategory(s string) (db.Category, error) {
	category := db.Category(strings.ToLower(strings.TrimSpace(s)))
	if !category.Valid() {
		return "", invalid("category", "must be one of travel, food, accommodation, others")
	}
	return category, nil
}

func verifyCurrency(s string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(s))
	if currency == "" {
		return db.DefaultCurrency, nil
	}
	if !currencyPattern.MatchString(currency) {
		return "", invalid("currency", "must be a three letter code")
	}
	return currency, nil
}

// verifySplits checks the split list on its own; membership is checked
// against the trip afterwards.
func verifySplits(splits []SplitInput) error {
	if len(splits) == 0 {
		return invalid("splits", "at least one split is required")
	}
	seen := make(map[string]bool, len(splits))
	pcts := make([]float64, 0, len(splits))
	for _, s := range splits {
		if !isSafeIdentifier(s.UserID) {
			return invalid("splits", "split user id is invalid")
		}
		if seen[s.UserID] {
			return invalid("splits", "duplicate user "+s.UserID)
		}
		seen[s.UserID] = true
		if math.IsNaN(s.Percentage) || math.IsInf(s.Percentage, 0) || s.Percentage < 0 || s.Percentage > 100 {
			return invalid("splits", "percentage must be between 0 and 100")
		}
		pcts = append(pcts, s.Percentage)
	}

	if !money.PercentsAddUp(pcts) {
		return invalidTotal("splits", "split percentages must add up to 100", money.PercentTotal(pcts))
	}
	return nil
}

// allocateSplits derives stored split amounts from the percentages.
func allocateSplits(amount float64, splits []SplitInput) ([]db.Split, error) {
	pcts := make([]float64, len(splits))
	for i, s := range splits {
		pcts[i] = s.Percentage
	}
	shares, err := money.Allocate(amount, pcts)
	if err != nil {
		return nil, err
	}
	out := make([]db.Split, len(splits))
	for i, s := range splits {
		out[i] = db.Split{UserID: s.UserID, Percentage: s.Percentage, Amount: shares[i]}
	}
	return out, nil
}

func verifyUPI(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s != "" && !upiPattern.MatchString(s) {
		return "", invalid("upiId", "must look like name@bank")
	}
	return s, nil
}

func verifyPhone(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if s != "" && !phonePattern.MatchString(s) {
		return "", invalid("phoneNumber", "must contain 7 to 15 digits")
	}
	return s, nil
}
