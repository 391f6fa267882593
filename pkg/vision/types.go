package vision

type Feature string

const (
	FeatureDocumentText       Feature = "DOCUMENT_TEXT_DETECTION"
	FeatureLabels             Feature = "LABEL_DETECTION"
	FeatureImageProperties    Feature = "IMAGE_PROPERTIES"
	FeatureObjectLocalization Feature = "OBJECT_LOCALIZATION"
)

var maxResults = map[Feature]int{
	FeatureDocumentText:       10,
	FeatureLabels:             15,
	FeatureImageProperties:    10,
	FeatureObjectLocalization: 10,
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image        imageContent  `json:"image"`
	Features     []featureSpec `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imageContent struct {
	Content string `json:"content"`
}

type featureSpec struct {
	Type       Feature `json:"type"`
	MaxResults int     `json:"maxResults,omitempty"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type annotateResponse struct {
	Responses []imageResponse `json:"responses"`
	Error     *apiError       `json:"error,omitempty"`
}

type imageResponse struct {
	TextAnnotations []struct {
		Description string `json:"description"`
	} `json:"textAnnotations"`
	FullTextAnnotation *struct {
		Text string `json:"text"`
	} `json:"fullTextAnnotation"`
	LabelAnnotations []struct {
		Description string  `json:"description"`
		Score       float64 `json:"score"`
	} `json:"labelAnnotations"`
	ImagePropertiesAnnotation *struct {
		DominantColors struct {
			Colors []struct {
				Color struct {
					Red   float64 `json:"red"`
					Green float64 `json:"green"`
					Blue  float64 `json:"blue"`
				} `json:"color"`
				Score         float64 `json:"score"`
				PixelFraction float64 `json:"pixelFraction"`
			} `json:"colors"`
		} `json:"dominantColors"`
	} `json:"imagePropertiesAnnotation"`
	LocalizedObjectAnnotations []struct {
		Name         string  `json:"name"`
		Score        float64 `json:"score"`
		BoundingPoly struct {
			NormalizedVertices []struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"normalizedVertices"`
		} `json:"boundingPoly"`
	} `json:"localizedObjectAnnotations"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
