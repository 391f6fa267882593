// Package scan runs one identification attempt end to end: recognize,
// look up, store the image, and record the attempt in the user's history.
package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pillid/internal/util"
	"pillid/pkg/classify"
	"pillid/pkg/domain"
	"pillid/pkg/fda"
	"pillid/pkg/result"
	"pillid/pkg/storage"
	"pillid/pkg/vision"
)

// NoMatchMessage is reported whenever the lookup found nothing usable.
const NoMatchMessage = "No medication found."

const unknownShape = "unknown"

var ndcLike = regexp.MustCompile(`^[0-9]{10,13}$`)

var (
	ErrUnknownType  = errors.New("unknown scan type")
	ErrEmptyInput   = errors.New("scan input is empty")
	ErrInvalidImage = errors.New("invalid image")
)

// Vision annotates images.
type Vision interface {
	Annotate(ctx context.Context, image []byte, features ...vision.Feature) result.Result[vision.Annotation]
}

// Lookup resolves codes and text to drug labels.
type Lookup interface {
	SearchByNDC(ctx context.Context, code string) result.Result[fda.Label]
	SearchByName(ctx context.Context, name string, limit int) result.Result[[]fda.Label]
	SearchGeneric(ctx context.Context, query string, limit int) result.Result[[]fda.Label]
}

// Recorder persists scan history and identified medications.
type Recorder interface {
	RecordScan(domain.ScanHistoryEntry) error
	CreateMedication(domain.Medication) error
}

// Request is one scan attempt. Barcode scans carry Data (and optionally the
// symbology in BarcodeType); pill and imprint scans carry Image.
type Request struct {
	Type        domain.ScanType
	BarcodeType string
	Data        string
	Image       []byte
}

// PillFeatures is what a pill scan reports when no medication matched.
type PillFeatures struct {
	Color  string   `json:"color"`
	Shape  string   `json:"shape"`
	Labels []string `json:"labels"`
}

// ImprintText is what an imprint scan reports when no medication matched.
type ImprintText struct {
	Imprint  string `json:"imprint"`
	FullText string `json:"fullText"`
}

// Outcome is returned to the caller for every attempt, recorded or not.
type Outcome struct {
	ScanID       string                 `json:"scanId"`
	Type         domain.ScanType        `json:"scanType"`
	Successful   bool                   `json:"successful"`
	Medication   *domain.MedicationInfo `json:"medication,omitempty"`
	MedicationID string                 `json:"medicationId,omitempty"`
	Result       any                    `json:"result"`
	ScanData     json.RawMessage        `json:"scanData"`
	Message      string                 `json:"message,omitempty"`
	ImageKey     string                 `json:"imageKey,omitempty"`
	Recorded     bool                   `json:"recorded"`

	// detected pill appearance, copied onto a created medication
	color, shape string
}

// Scanner wires the collaborators of a scan together. Objects may be nil, in
// which case images are not kept.
type Scanner struct {
	vision  Vision
	lookup  Lookup
	records Recorder
	objects storage.ObjectStore

	maxWidth int
	quality  int
	now      func() time.Time
}

// NewScanner builds a scanner.
func NewScanner(v Vision, l Lookup, r Recorder, objects storage.ObjectStore) *Scanner {
	return &Scanner{
		vision:   v,
		lookup:   l,
		records:  r,
		objects:  objects,
		maxWidth: vision.DefaultMaxWidth,
		quality:  vision.DefaultQuality,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Scan runs one attempt for userID. Lookup and vision problems never fail
// the call: they end as an unsuccessful or feature-only outcome. Only
// invalid input returns an error.
func (s *Scanner) Scan(ctx context.Context, userID string, req Request) (Outcome, error) {
	if strings.TrimSpace(userID) == "" {
		return Outcome{}, errors.New("user id required")
	}
	out := Outcome{ScanID: util.NewID(), Type: req.Type}
	var (
		scanData map[string]any
		err      error
	)
	switch req.Type {
	case domain.ScanBarcode:
		scanData, err = s.scanBarcode(ctx, req, &out)
	case domain.ScanPill:
		scanData, err = s.scanPill(ctx, userID, req, &out)
	case domain.ScanImprint:
		scanData, err = s.scanImprint(ctx, userID, req, &out)
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}
	if err != nil {
		return Outcome{}, err
	}
	if out.Medication == nil {
		out.Message = NoMatchMessage
	}

	rawData, err := json.Marshal(scanData)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode scan data: %w", err)
	}
	out.ScanData = rawData

	logger := util.LoggerFromContext(ctx)
	if out.Medication != nil {
		out.MedicationID = s.saveMedication(ctx, userID, &out)
	}
	s.record(ctx, userID, &out)
	logger.Info("scan_completed",
		"scan_id", out.ScanID,
		"scan_type", out.Type,
		"successful", out.Successful,
		"matched", out.Medication != nil,
		"recorded", out.Recorded,
	)
	return out, nil
}

func (s *Scanner) scanBarcode(ctx context.Context, req Request, out *Outcome) (map[string]any, error) {
	data := strings.TrimSpace(req.Data)
	if data == "" {
		return nil, ErrEmptyInput
	}
	if ndcLike.MatchString(data) {
		res := s.lookup.SearchByNDC(ctx, data)
		s.logMiss(ctx, "ndc", data, res.Kind, res.Reason)
		if label, ok := res.Get(); ok {
			s.matched(out, fda.Format(label))
		}
	} else {
		res := s.lookup.SearchByName(ctx, data, 1)
		s.logMiss(ctx, "name", data, res.Kind, res.Reason)
		if labels, ok := res.Get(); ok {
			s.matched(out, fda.Format(labels[0]))
		}
	}
	out.Successful = out.Medication != nil
	if out.Medication != nil {
		out.Result = out.Medication
	}
	return map[string]any{"type": req.BarcodeType, "data": data}, nil
}

func (s *Scanner) scanPill(ctx context.Context, userID string, req Request, out *Outcome) (map[string]any, error) {
	img, err := s.prepare(req.Image)
	if err != nil {
		return nil, err
	}
	out.ImageKey = s.storeImage(ctx, userID, out.ScanID, img)

	ann, _ := s.annotate(ctx, img, vision.FeatureImageProperties, vision.FeatureLabels, vision.FeatureObjectLocalization)
	color, hasColor := classify.ColorName(ann.Colors)
	shape, hasShape := classify.ShapeName(ann.Objects)

	var query string
	switch {
	case hasColor && hasShape:
		query = color + " " + shape + " pill"
	case hasColor:
		query = color + " pill"
	case hasShape:
		query = shape + " pill"
	}
	if query != "" {
		res := s.lookup.SearchGeneric(ctx, query, 1)
		s.logMiss(ctx, "generic", query, res.Kind, res.Reason)
		if labels, ok := res.Get(); ok {
			s.matched(out, fda.Format(labels[0]))
		}
	}

	out.color, out.shape = color, shape
	storedShape := shape
	if !hasShape {
		storedShape = unknownShape
	}
	labels := ann.Labels
	if labels == nil {
		labels = []string{}
	}
	out.Successful = true
	if out.Medication != nil {
		out.Result = out.Medication
	} else {
		out.Result = PillFeatures{Color: color, Shape: shape, Labels: labels}
	}
	data := map[string]any{"color": nullable(color), "shape": storedShape, "labels": labels}
	if out.ImageKey != "" {
		data["imageKey"] = out.ImageKey
	}
	return data, nil
}

func (s *Scanner) scanImprint(ctx context.Context, userID string, req Request, out *Outcome) (map[string]any, error) {
	img, err := s.prepare(req.Image)
	if err != nil {
		return nil, err
	}
	out.ImageKey = s.storeImage(ctx, userID, out.ScanID, img)

	ann, _ := s.annotate(ctx, img, vision.FeatureDocumentText)
	imprint, hasImprint := classify.ExtractImprint(ann.FullText)
	if hasImprint {
		res := s.lookup.SearchGeneric(ctx, imprint, 3)
		s.logMiss(ctx, "generic", imprint, res.Kind, res.Reason)
		if labels, ok := res.Get(); ok {
			info := fda.Format(labels[0])
			info.Imprint = imprint
			s.matched(out, info)
		}
	}

	out.Successful = hasImprint
	if out.Medication != nil {
		out.Result = out.Medication
	} else {
		out.Result = ImprintText{Imprint: imprint, FullText: ann.FullText}
	}
	data := map[string]any{"imprint": nullable(imprint), "fullText": nullable(ann.FullText)}
	if out.ImageKey != "" {
		data["imageKey"] = out.ImageKey
	}
	return data, nil
}

func (s *Scanner) matched(out *Outcome, info domain.MedicationInfo) {
	out.Medication = &info
}

func (s *Scanner) prepare(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}
	img, err := vision.PrepareImage(raw, s.maxWidth, s.quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

func (s *Scanner) annotate(ctx context.Context, img []byte, features ...vision.Feature) (vision.Annotation, bool) {
	res := s.vision.Annotate(ctx, img, features...)
	if res.Kind == result.KindFailed {
		util.LoggerFromContext(ctx).Warn("vision call failed", "err", res.Reason)
	}
	return res.Get()
}

// storeImage uploads the prepared image and returns its key, or "" when
// there is no object store or the upload failed.
func (s *Scanner) storeImage(ctx context.Context, userID, scanID string, img []byte) string {
	if s.objects == nil {
		return ""
	}
	key := storage.ScanImageKey(userID, scanID)
	if err := s.objects.Put(ctx, key, bytes.NewReader(img), int64(len(img)), "image/jpeg"); err != nil {
		util.LoggerFromContext(ctx).Warn("scan image upload failed", "scan_id", scanID, "err", err)
		return ""
	}
	return key
}

func (s *Scanner) saveMedication(ctx context.Context, userID string, out *Outcome) string {
	now := s.now()
	med := MedicationFromInfo(*out.Medication)
	med.ID = util.NewID()
	med.UserID = userID
	med.ImageKey = out.ImageKey
	med.Color = out.color
	med.Shape = out.shape
	med.CreatedAt = now
	med.UpdatedAt = now
	if err := s.records.CreateMedication(med); err != nil {
		util.LoggerFromContext(ctx).Error("create medication failed", "err", err)
		return ""
	}
	return med.ID
}

func (s *Scanner) record(ctx context.Context, userID string, out *Outcome) {
	entry := domain.ScanHistoryEntry{
		ID:           out.ScanID,
		UserID:       userID,
		ScanType:     out.Type,
		ScanData:     out.ScanData,
		IsSuccessful: out.Successful,
		MedicationID: out.MedicationID,
		CreatedAt:    s.now(),
	}
	if out.Result != nil {
		raw, err := json.Marshal(out.Result)
		if err != nil {
			util.LoggerFromContext(ctx).Error("encode scan result failed", "err", err)
		} else {
			entry.Result = raw
		}
	}
	if err := s.records.RecordScan(entry); err != nil {
		util.LoggerFromContext(ctx).Error("record scan failed", "scan_id", out.ScanID, "err", err)
		return
	}
	out.Recorded = true
}

func (s *Scanner) logMiss(ctx context.Context, strategy, query string, kind result.Kind, reason error) {
	if kind == result.KindFound {
		return
	}
	logger := util.LoggerFromContext(ctx)
	if kind == result.KindFailed {
		logger.Warn("medication lookup failed", "strategy", strategy, "query", query, "err", reason)
		return
	}
	logger.Info("medication lookup empty", "strategy", strategy, "query", query)
}

// MedicationFromInfo copies the fields of a normalized label that a stored
// medication keeps.
func MedicationFromInfo(info domain.MedicationInfo) domain.Medication {
	return domain.Medication{
		Name:              info.Name,
		NDC:               info.NDC,
		Imprint:           info.Imprint,
		Manufacturer:      info.Manufacturer,
		ActiveIngredients: info.ActiveIngredients,
		Dosage:            info.Dosage,
		Route:             info.Route,
		Packaging:         info.PackageLabel,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
