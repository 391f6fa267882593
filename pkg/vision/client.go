// Package vision is a small client for the Google Cloud Vision annotate API.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pillid/pkg/classify"
	"pillid/pkg/result"
)

const defaultBaseURL = "https://vision.googleapis.com/v1"

// Annotation collects everything one annotate call returned.
type Annotation struct {
	FullText string
	Labels   []string
	Colors   []classify.ScoredColor
	Objects  []classify.Detection
}

func (a Annotation) empty() bool {
	return a.FullText == "" && len(a.Labels) == 0 && len(a.Colors) == 0 && len(a.Objects) == 0
}

// Client calls images:annotate with an API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. An empty baseURL selects the public endpoint.
func NewClient(apiKey, baseURL string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("vision api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Annotate runs the requested features over one image in a single request.
// Images are sent as-is; use PrepareImage first to keep payloads small.
func (c *Client) Annotate(ctx context.Context, image []byte, features ...Feature) result.Result[Annotation] {
	if len(image) == 0 {
		return result.Failed[Annotation](errors.New("empty image"))
	}
	if len(features) == 0 {
		return result.Failed[Annotation](errors.New("no features requested"))
	}
	req := imageRequest{Image: imageContent{Content: base64.StdEncoding.EncodeToString(image)}}
	for _, f := range features {
		req.Features = append(req.Features, featureSpec{Type: f, MaxResults: maxResults[f]})
		if f == FeatureDocumentText {
			req.ImageContext = &imageContext{LanguageHints: []string{"en"}}
		}
	}

	var resp annotateResponse
	if err := c.doJSON(ctx, c.baseURL+"/images:annotate?key="+c.apiKey, annotateRequest{Requests: []imageRequest{req}}, &resp); err != nil {
		return result.Failed[Annotation](err)
	}
	if resp.Error != nil {
		return result.Failed[Annotation](fmt.Errorf("vision api error: %s", resp.Error.Message))
	}
	if len(resp.Responses) == 0 {
		return result.Empty[Annotation]()
	}
	first := resp.Responses[0]
	if first.Error != nil {
		return result.Failed[Annotation](fmt.Errorf("vision api error: %s", first.Error.Message))
	}
	out := convert(first)
	if out.empty() {
		return result.Empty[Annotation]()
	}
	return result.Found(out)
}

func convert(r imageResponse) Annotation {
	var out Annotation
	if len(r.TextAnnotations) > 0 {
		out.FullText = r.TextAnnotations[0].Description
	} else if r.FullTextAnnotation != nil {
		out.FullText = r.FullTextAnnotation.Text
	}
	for _, l := range r.LabelAnnotations {
		out.Labels = append(out.Labels, l.Description)
	}
	if r.ImagePropertiesAnnotation != nil {
		for _, c := range r.ImagePropertiesAnnotation.DominantColors.Colors {
			out.Colors = append(out.Colors, classify.ScoredColor{
				Red:           c.Color.Red,
				Green:         c.Color.Green,
				Blue:          c.Color.Blue,
				Score:         c.Score,
				PixelFraction: c.PixelFraction,
			})
		}
	}
	for _, o := range r.LocalizedObjectAnnotations {
		det := classify.Detection{Name: o.Name, Score: o.Score}
		for _, v := range o.BoundingPoly.NormalizedVertices {
			det.Vertices = append(det.Vertices, classify.Vertex{X: v.X, Y: v.Y})
		}
		out.Objects = append(out.Objects, det)
	}
	return out
}

func (c *Client) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp annotateResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != nil && errResp.Error.Message != "" {
			return fmt.Errorf("vision api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("vision api error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode vision response: %w", err)
	}
	return nil
}
