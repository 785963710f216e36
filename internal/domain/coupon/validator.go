package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Validator resolves coupon codes for pricing and checkout.
type Validator interface {
	// Lookup returns the usable rule for code without consuming a use.
	Lookup(ctx context.Context, code string) (*Rule, error)
	// Validate prices code against items without consuming a use.
	Validate(ctx context.Context, code string, items []Item) (*Discount, error)
	// Redeem consumes one use of code.
	Redeem(ctx context.Context, code string) error
}

// RepoValidator is a Validator over a coupon Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

var _ Validator = (*RepoValidator)(nil)

func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Lookup trims code, loads its rule and checks it with Rule.Check.
func (v *RepoValidator) Lookup(ctx context.Context, code string) (*Rule, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	rule, err := v.repo.FindByCode(ctx, code)
	switch {
	case errors.Is(err, ErrInvalidCoupon):
		return nil, ErrInvalidCoupon
	case err != nil:
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := rule.Check(v.now()); err != nil {
		return nil, err
	}
	return rule, nil
}

func (v *RepoValidator) Validate(ctx context.Context, code string, items []Item) (*Discount, error) {
	rule, err := v.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	d, err := Apply(rule, items)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (v *RepoValidator) Redeem(ctx context.Context, code string) error {
	if err := v.repo.IncrementUses(ctx, strings.TrimSpace(code)); err != nil {
		return errors.Wrap(err, "increment coupon uses")
	}
	return nil
}
