package orders

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/troopfundraiser/frclient/internal/frconfig"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// Validate checks an order before submission. cfg is optional; when set, products,
// delivery dates and the products cost are checked against the catalog.
// Failures are VALIDATION_ERROR with a field to message map as details.
func Validate(o *Order, cfg *frconfig.Config) error {
	if o == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	problems := map[string]string{}

	if err := validate.Struct(o); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				problems[fe.Field()] = validationMessage(fe)
			}
		} else {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
	}

	hasProducts := o.HasProducts()
	if !hasProducts && !o.HasDonation() {
		problems["products"] = "an order needs products or a donation"
	}

	for field, amount := range map[string]interface{ IsNegative() bool }{
		"productsCost": o.ProductsCost,
		"totalAmt":     o.TotalAmt,
		"cashPaid":     o.CashPaid,
		"checkPaid":    o.CheckPaid,
		"donation":     o.DonationAmount(),
	} {
		if amount.IsNegative() {
			problems[field] = "must not be negative"
		}
	}

	if !o.TotalAmt.Equal(o.ProductsCost.Add(o.DonationAmount())) {
		problems["totalAmt"] = "must equal products cost plus donation"
	}

	if !o.DoCollectMoneyLater && !o.AmountPaid().Equal(o.TotalAmt) {
		problems["amountPaid"] = "cash plus check must equal the total unless money is collected later"
	}

	if o.CheckPaid.IsPositive() && strings.TrimSpace(o.CheckNums) == "" {
		problems["checkNums"] = "is required when paying by check"
	}

	if hasProducts {
		if o.IsDonationOnly() {
			problems["deliveryId"] = "is required for orders with products"
		}
		if strings.TrimSpace(o.AddrStreet) == "" {
			problems["addr1"] = "is required for delivery"
		}
		if strings.TrimSpace(o.Neighborhood) == "" {
			problems["neighborhood"] = "is required for delivery"
		}
	}

	if cfg != nil {
		for _, id := range o.ProductIDs() {
			if _, ok := cfg.Product(id); !ok {
				problems["products."+id] = "is not a configured product"
			}
		}
		if !o.IsDonationOnly() {
			if _, ok := cfg.DeliveryDate(o.DeliveryID); !ok {
				problems["deliveryId"] = "is not a configured delivery date"
			}
		}
		if o.Neighborhood != "" {
			if _, ok := cfg.Neighborhood(o.Neighborhood); !ok {
				problems["neighborhood"] = "is not a configured neighborhood"
			}
		}
		if expected := ProductsCost(cfg, o.Products); !expected.Equal(o.ProductsCost) {
			problems["productsCost"] = fmt.Sprintf("must be %s for the ordered quantities", expected.StringFixed(2))
		}
	}

	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(problems)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a uuid"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
