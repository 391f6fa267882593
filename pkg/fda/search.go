package fda

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"pillid/pkg/result"
)

// ndcStrategy turns a cleaned code into one NDC directory query.
type ndcStrategy struct {
	name  string
	query func(code string) string
}

// Tried in order; the first one with a hit wins.
var ndcStrategies = []ndcStrategy{
	{"exact", func(code string) string { return phrase("product_ndc", code) }},
	{"labeler-5", func(code string) string { return phrase("product_ndc", splitAt(code, 5)) }},
	{"labeler-4", func(code string) string { return phrase("product_ndc", splitAt(code, 4)) }},
}

// Codes at least this long may be UPC/EAN barcodes rather than NDCs.
const upcMinLen = 12

func splitAt(code string, n int) string {
	if n > len(code) {
		n = len(code)
	}
	return code[:n] + "-" + code[n:]
}

func cleanNDC(code string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, code)
}

// SearchByNDC resolves a product code against the NDC directory, trying the
// common 5-4 and 4-4 labeler splits, then a free-text label search for long
// UPC-like codes.
func (c *Client) SearchByNDC(ctx context.Context, code string) result.Result[Label] {
	cleaned := cleanNDC(code)
	if cleaned == "" {
		return result.Empty[Label]()
	}
	var lastErr error
	for _, s := range ndcStrategies {
		res := fetch[Product](ctx, c, "ndc.json", s.query(cleaned), 1)
		if products, ok := res.Get(); ok {
			slog.Debug("ndc lookup hit", "strategy", s.name, "ndc", cleaned)
			return result.Found(products[0].Label())
		}
		if res.Kind == result.KindFailed {
			lastErr = res.Reason
		}
	}
	if len(cleaned) >= upcMinLen {
		res := c.SearchGeneric(ctx, cleaned, DefaultLimit)
		if labels, ok := res.Get(); ok {
			return result.Found(labels[0])
		}
		if res.Kind == result.KindFailed {
			lastErr = res.Reason
		}
	}
	if lastErr != nil {
		return result.Failed[Label](lastErr)
	}
	return result.Empty[Label]()
}

// SearchByName looks a name up as both brand and generic name at once.
// Brand hits come first; records are unique by application number and
// records without one are left out.
func (c *Client) SearchByName(ctx context.Context, name string, limit int) result.Result[[]Label] {
	name = strings.TrimSpace(name)
	if name == "" {
		return result.Empty[[]Label]()
	}
	limit = normalizeLimit(limit)

	var brand, generic result.Result[[]Label]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		brand = fetch[Label](gctx, c, "label.json", phrase("openfda.brand_name", name), limit)
		return nil
	})
	g.Go(func() error {
		generic = fetch[Label](gctx, c, "label.json", phrase("openfda.generic_name", name), limit)
		return nil
	})
	_ = g.Wait()

	if brand.Kind == result.KindFailed && generic.Kind == result.KindFailed {
		return result.Failed[[]Label](errors.Join(brand.Reason, generic.Reason))
	}
	var combined []Label
	combined = append(combined, brand.Value...)
	combined = append(combined, generic.Value...)
	unique := dedupeByApplication(combined)
	if len(unique) == 0 {
		return result.Empty[[]Label]()
	}
	if len(unique) > limit {
		unique = unique[:limit]
	}
	return result.Found(unique)
}

func dedupeByApplication(labels []Label) []Label {
	seen := make(map[string]struct{}, len(labels))
	out := make([]Label, 0, len(labels))
	for _, l := range labels {
		key := l.ApplicationNumber()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

func (c *Client) SearchByActiveIngredient(ctx context.Context, ingredient string, limit int) result.Result[[]Label] {
	if strings.TrimSpace(ingredient) == "" {
		return result.Empty[[]Label]()
	}
	return fetch[Label](ctx, c, "label.json", phrase("active_ingredient", ingredient), normalizeLimit(limit))
}

// SearchGeneric passes query through as a free-text openFDA search.
func (c *Client) SearchGeneric(ctx context.Context, query string, limit int) result.Result[[]Label] {
	query = strings.TrimSpace(query)
	if query == "" {
		return result.Empty[[]Label]()
	}
	return fetch[Label](ctx, c, "label.json", query, normalizeLimit(limit))
}

func (c *Client) GetByManufacturer(ctx context.Context, manufacturer string, limit int) result.Result[[]Label] {
	if strings.TrimSpace(manufacturer) == "" {
		return result.Empty[[]Label]()
	}
	return fetch[Label](ctx, c, "label.json", phrase("openfda.manufacturer_name", manufacturer), normalizeLimit(limit))
}

func (c *Client) GetByApplicationNumber(ctx context.Context, number string) result.Result[Label] {
	if strings.TrimSpace(number) == "" {
		return result.Empty[Label]()
	}
	res := fetch[Label](ctx, c, "label.json", phrase("openfda.application_number", number), 1)
	if labels, ok := res.Get(); ok {
		return result.Found(labels[0])
	}
	if res.Kind == result.KindFailed {
		return result.Failed[Label](res.Reason)
	}
	return result.Empty[Label]()
}
