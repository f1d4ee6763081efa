package domain

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(snapshotHasData, MarketSnapshot{})
		validate.RegisterStructValidation(draftHasBody, Draft{})
	})
	return validate
}

// Validate checks v at a stage boundary and wraps failures in ValidationError.
func Validate(stage string, v any) error {
	if err := validatorInstance().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" "+fe.Tag())
			}
			return &ValidationError{Stage: stage, Err: errors.New(strings.Join(fields, ", "))}
		}
		return &ValidationError{Stage: stage, Err: err}
	}
	return nil
}

func snapshotHasData(sl validator.StructLevel) {
	s := sl.Current().Interface().(MarketSnapshot)
	if s.Price == nil && s.Volume == nil && s.MarketCap == nil && s.Ticker == "" {
		sl.ReportError(s.Price, "Price", "price", "snapshot_data", "")
	}
}

func draftHasBody(sl validator.StructLevel) {
	d := sl.Current().Interface().(Draft)
	if strings.TrimSpace(d.Title) == "" {
		sl.ReportError(d.Title, "Title", "title", "notblank", "")
	}
	if strings.TrimSpace(d.Content) == "" {
		sl.ReportError(d.Content, "Content", "content", "notblank", "")
	}
}
