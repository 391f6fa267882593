package fda

import (
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pillid/pkg/domain"
)

// "ACETAMINOPHEN 500 mg" -> name, strength.
var ingredientPattern = regexp.MustCompile(`(.+?)\s+(\d+\s*\w+)`)

// Format normalizes a label into the record shown to users. It never
// panics: if normalization fails only the name survives, with low
// confidence.
func Format(label Label) (info domain.MedicationInfo) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("format label failed", "label_id", label.ID, "panic", r)
			name := first(label.OpenFDA.BrandName)
			if name == "" {
				name = first(label.OpenFDA.GenericName)
			}
			if name == "" {
				name = "Unknown Medication"
			}
			info = domain.MedicationInfo{Name: name, MatchConfidence: domain.ConfidenceLow}
		}
	}()
	return normalize(label)
}

// normalize is swapped out in tests to exercise the recovery path.
var normalize = normalizeLabel

func normalizeLabel(label Label) domain.MedicationInfo {
	o := label.OpenFDA
	info := domain.MedicationInfo{
		GenericName:       first(o.GenericName),
		BrandName:         first(o.BrandName),
		NDC:               first(o.ProductNDC),
		RxCUI:             first(o.RxCUI),
		SPLID:             first(o.SPLID),
		ApplicationNumber: first(o.ApplicationNumber),
		ActiveIngredients: parseIngredients(label.ActiveIngredient),
		Dosage:            section(label.DosageAndAdministration, label.DosageAndAdministrationTable),
		DosageForm:        first(o.DosageForm),
		Route:             first(o.Route),
		Manufacturer:      first(o.ManufacturerName),
		Description:       first(label.Description),
		Indications:       first(label.IndicationsAndUsage),
		Warnings:          section(label.Warnings, label.WarningsAndCautions),
		DrugInteractions:  section(label.DrugInteractions, label.DrugInteractionsTable),
		Pregnancy:         first(label.Pregnancy),
		Storage:           section(label.StorageAndHandling, label.StorageAndHandlingTable),
		PackageLabel:      first(label.PackageLabelPrincipalDisplayPanel),
		MatchConfidence:   domain.ConfidenceHigh,
	}
	switch {
	case info.BrandName != "":
		info.Name = info.BrandName
	case info.GenericName != "":
		info.Name = info.GenericName
	default:
		info.Name = "Unknown"
	}
	return info
}

// FormatAll formats labels in order.
func FormatAll(labels []Label) []domain.MedicationInfo {
	out := make([]domain.MedicationInfo, 0, len(labels))
	for _, l := range labels {
		out = append(out, Format(l))
	}
	return out
}

func parseIngredients(raw []string) []domain.Ingredient {
	if len(raw) == 0 {
		return nil
	}
	out := make([]domain.Ingredient, 0, len(raw))
	for _, ing := range raw {
		m := ingredientPattern.FindStringSubmatch(ing)
		if m == nil {
			out = append(out, domain.Ingredient{Name: ing, Strength: "Unknown"})
			continue
		}
		out = append(out, domain.Ingredient{Name: strings.TrimSpace(m[1]), Strength: strings.TrimSpace(m[2])})
	}
	return out
}

// section prefers the plain text; otherwise the fallback list, which may be
// an HTML table.
func section(text, fallback []string) string {
	if s := first(text); s != "" {
		return s
	}
	s := first(fallback)
	if strings.Contains(s, "<") {
		return tableText(s)
	}
	return s
}

// tableText flattens an HTML table into one line per row with cells joined
// by " | ".
func tableText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	var (
		lines []string
		cells []string
		buf   strings.Builder
	)
	flush := func() string {
		s := strings.Join(strings.Fields(buf.String()), " ")
		buf.Reset()
		return s
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type != html.ElementNode {
			return
		}
		switch n.DataAtom {
		case atom.Td, atom.Th:
			cells = append(cells, flush())
		case atom.Tr:
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
			cells = nil
		case atom.Caption:
			if s := flush(); s != "" {
				lines = append(lines, s)
			}
		}
	}
	walk(doc)
	if s := flush(); s != "" {
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n")
}
