package fda

// OpenFDA is the harmonized field block attached to label and NDC records.
// Every field is a list even when it holds one value.
type OpenFDA struct {
	BrandName         []string `json:"brand_name,omitempty"`
	GenericName       []string `json:"generic_name,omitempty"`
	ProductNDC        []string `json:"product_ndc,omitempty"`
	PackageNDC        []string `json:"package_ndc,omitempty"`
	RxCUI             []string `json:"rxcui,omitempty"`
	SPLID             []string `json:"spl_id,omitempty"`
	ApplicationNumber []string `json:"application_number,omitempty"`
	DosageForm        []string `json:"dosage_form,omitempty"`
	Route             []string `json:"route,omitempty"`
	ManufacturerName  []string `json:"manufacturer_name,omitempty"`
	UPC               []string `json:"upc,omitempty"`
}

// Label is a drug label record from label.json. Sections that the API also
// ships as HTML tables carry a matching *Table field.
type Label struct {
	ID                                string   `json:"id,omitempty"`
	SetID                             string   `json:"set_id,omitempty"`
	OpenFDA                           OpenFDA  `json:"openfda"`
	ActiveIngredient                  []string `json:"active_ingredient,omitempty"`
	DosageAndAdministration           []string `json:"dosage_and_administration,omitempty"`
	DosageAndAdministrationTable      []string `json:"dosage_and_administration_table,omitempty"`
	Description                       []string `json:"description,omitempty"`
	IndicationsAndUsage               []string `json:"indications_and_usage,omitempty"`
	Warnings                          []string `json:"warnings,omitempty"`
	WarningsAndCautions               []string `json:"warnings_and_cautions,omitempty"`
	DrugInteractions                  []string `json:"drug_interactions,omitempty"`
	DrugInteractionsTable             []string `json:"drug_interactions_table,omitempty"`
	Pregnancy                         []string `json:"pregnancy,omitempty"`
	StorageAndHandling                []string `json:"storage_and_handling,omitempty"`
	StorageAndHandlingTable           []string `json:"storage_and_handling_table,omitempty"`
	PackageLabelPrincipalDisplayPanel []string `json:"package_label_principal_display_panel,omitempty"`
}

// ApplicationNumber returns the first application number, if any.
func (l Label) ApplicationNumber() string {
	return first(l.OpenFDA.ApplicationNumber)
}

// Product is a record from the NDC directory (ndc.json).
type Product struct {
	ProductNDC        string              `json:"product_ndc"`
	GenericName       string              `json:"generic_name,omitempty"`
	BrandName         string              `json:"brand_name,omitempty"`
	LabelerName       string              `json:"labeler_name,omitempty"`
	DosageForm        string              `json:"dosage_form,omitempty"`
	Route             []string            `json:"route,omitempty"`
	ApplicationNumber string              `json:"application_number,omitempty"`
	ActiveIngredients []ProductIngredient `json:"active_ingredients,omitempty"`
	OpenFDA           OpenFDA             `json:"openfda"`
}

type ProductIngredient struct {
	Name     string `json:"name"`
	Strength string `json:"strength"`
}

// Label reshapes a directory record so it can be formatted like a label.
func (p Product) Label() Label {
	l := Label{OpenFDA: p.OpenFDA}
	l.OpenFDA.ProductNDC = []string{p.ProductNDC}
	if p.BrandName != "" {
		l.OpenFDA.BrandName = []string{p.BrandName}
	}
	if p.GenericName != "" {
		l.OpenFDA.GenericName = []string{p.GenericName}
	}
	if p.ApplicationNumber != "" {
		l.OpenFDA.ApplicationNumber = []string{p.ApplicationNumber}
	}
	if p.DosageForm != "" {
		l.OpenFDA.DosageForm = []string{p.DosageForm}
	}
	if len(p.Route) > 0 {
		l.OpenFDA.Route = p.Route
	}
	if p.LabelerName != "" && len(l.OpenFDA.ManufacturerName) == 0 {
		l.OpenFDA.ManufacturerName = []string{p.LabelerName}
	}
	for _, ing := range p.ActiveIngredients {
		l.ActiveIngredient = append(l.ActiveIngredient, ing.Name+" "+ing.Strength)
	}
	return l
}

type searchResponse[T any] struct {
	Results []T       `json:"results"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
