package app

import (
	"context"
	"strings"

	"pillid/pkg/domain"
	"pillid/pkg/fda"
	"pillid/pkg/result"
)

// LookupQuery selects one label search. Exactly one field must be set.
type LookupQuery struct {
	NDC          string
	Name         string
	Ingredient   string
	Query        string
	Manufacturer string
	Application  string
	Limit        int
}

// LookupMedications runs a drug label search and returns normalized
// records. Nothing found and an unreachable label service both yield an
// empty slice; the failure is only logged.
func (a *App) LookupMedications(ctx context.Context, q LookupQuery) ([]domain.MedicationInfo, error) {
	q.trim()
	set := 0
	for _, v := range []string{q.NDC, q.Name, q.Ingredient, q.Query, q.Manufacturer, q.Application} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, invalid("exactly one of ndc, name, ingredient, q, manufacturer, application is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = fda.DefaultLimit
	}

	var res result.Result[[]fda.Label]
	switch {
	case q.NDC != "":
		res = single(a.lookup.SearchByNDC(ctx, q.NDC))
	case q.Application != "":
		res = single(a.lookup.GetByApplicationNumber(ctx, q.Application))
	case q.Name != "":
		res = a.lookup.SearchByName(ctx, q.Name, limit)
	case q.Ingredient != "":
		res = a.lookup.SearchByActiveIngredient(ctx, q.Ingredient, limit)
	case q.Manufacturer != "":
		res = a.lookup.GetByManufacturer(ctx, q.Manufacturer, limit)
	default:
		res = a.lookup.SearchGeneric(ctx, q.Query, limit)
	}

	if labels, ok := res.Get(); ok {
		return fda.FormatAll(labels), nil
	}
	if res.Kind == result.KindFailed {
		loggerFrom(ctx).Warn("label lookup failed", "err", res.Reason)
	}
	return []domain.MedicationInfo{}, nil
}

func (q *LookupQuery) trim() {
	for _, f := range []*string{&q.NDC, &q.Name, &q.Ingredient, &q.Query, &q.Manufacturer, &q.Application} {
		*f = strings.TrimSpace(*f)
	}
}

func single(r result.Result[fda.Label]) result.Result[[]fda.Label] {
	if v, ok := r.Get(); ok {
		return result.Found([]fda.Label{v})
	}
	return result.Result[[]fda.Label]{Kind: r.Kind, Reason: r.Reason}
}
