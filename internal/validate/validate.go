// Package validate provides the pre-request checks applied before anything reaches a collaborator.
package validate

import (
	"mime"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/shopspring/decimal"
)

// MinDescriptionLen is the shortest claim description accepted.
const MinDescriptionLen = 6

// MinPasswordLen is the shortest password accepted on registration.
const MinPasswordLen = 8

var (
	riskFactorRx = regexp.MustCompile(`^[a-zA-Z0-9 _\-]{1,32}$`)
	usernameRx   = regexp.MustCompile(`^[a-zA-Z0-9._@+\-]{3,64}$`)
)

// PositiveDecimal checks that d is strictly greater than zero.
func PositiveDecimal(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return apperr.Validation(field + " must be greater than 0")
	}
	return nil
}

// PositiveInt checks that n is strictly greater than zero.
func PositiveInt(field string, n int) error {
	if n <= 0 {
		return apperr.Validation(field + " must be a positive integer")
	}
	return nil
}

// Description checks the claim description length after trimming.
func Description(s string) error {
	if len([]rune(strings.TrimSpace(s))) < MinDescriptionLen {
		return apperr.Validation("description must be at least 6 characters")
	}
	return nil
}

// Reason checks that a suspension reason is present.
func Reason(s string) error {
	if strings.TrimSpace(s) == "" {
		return apperr.Validation("reason required")
	}
	return nil
}

// Decision checks that an adjudication decision is terminal.
func Decision(d models.ClaimStatus) error {
	if d != models.ClaimApproved && d != models.ClaimDenied {
		return apperr.Validation("decision must be APPROVED or DENIED")
	}
	return nil
}

// Payout checks that a payout amount is supplied and not negative.
func Payout(p *decimal.Decimal) error {
	if p == nil {
		return apperr.Validation("payoutAmount required")
	}
	if p.IsNegative() {
		return apperr.Validation("payoutAmount must be >= 0")
	}
	return nil
}

// Filename checks that an evidence filename is a bare, reasonably sized name.
func Filename(fn string) error {
	fn = strings.TrimSpace(fn)
	if fn == "" {
		return apperr.Validation("filename required")
	}
	if len(fn) > 255 {
		return apperr.Validation("filename too long")
	}
	if strings.ContainsAny(fn, `/\`) || fn != filepath.Base(fn) || fn == "." || fn == ".." {
		return apperr.Validation("filename must not contain path separators")
	}
	return nil
}

// ContentType checks that ct is a syntactically valid media type. Empty is allowed.
func ContentType(ct string) error {
	if strings.TrimSpace(ct) == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.Contains(mt, "/") {
		return apperr.Validation("invalid content type: " + ct)
	}
	return nil
}

// Quote checks a quote request before it is sent to the pricing collaborator.
func Quote(q models.QuoteRequest) error {
	if q.Age < 0 || q.Age > 120 {
		return apperr.Validation("age must be between 0 and 120")
	}
	if err := PositiveDecimal("coverageAmount", q.CoverageAmount); err != nil {
		return err
	}
	for _, f := range q.RiskFactors {
		if !riskFactorRx.MatchString(f) {
			return apperr.Validation("invalid risk factor: " + f)
		}
	}
	return nil
}

// Username checks a login name.
func Username(u string) error {
	if !usernameRx.MatchString(u) {
		return apperr.Validation("invalid username")
	}
	return nil
}

// Email checks a registration address.
func Email(e string) error {
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return apperr.Validation("invalid email")
	}
	return nil
}

// Password checks the registration password length.
func Password(p string) error {
	if len(p) < MinPasswordLen {
		return apperr.Validation("password must be at least 8 characters")
	}
	return nil
}

// Role checks a requested role. Empty is allowed and means USER.
func Role(r models.Role) error {
	if r != "" && !r.Valid() {
		return apperr.Validation("role must be USER or ADMIN")
	}
	return nil
}

// All runs validators in order and returns the first failure.
func All(validators ...func() error) error {
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}
