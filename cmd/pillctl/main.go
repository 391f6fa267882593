// Command pillctl runs label lookups and the recognizers from a shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pillid/pkg/classify"
	"pillid/pkg/domain"
	"pillid/pkg/fda"
	"pillid/pkg/result"
	"pillid/pkg/scan"
	"pillid/pkg/store"
	"pillid/pkg/vision"
)

const usage = `usage:
  pillctl lookup (-ndc|-name|-ingredient|-q) <value> [-limit n]
  pillctl imprint <text|->
  pillctl identify -type pill|imprint -image <path>
`

var errUsage = errors.New("bad usage")

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Getenv)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pillctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, getenv func(string) string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "lookup":
		return runLookup(ctx, args[1:], stdout, getenv)
	case "imprint":
		return runImprint(args[1:], stdin, stdout)
	case "identify":
		return runIdentify(ctx, args[1:], stdout, getenv)
	default:
		return errUsage
	}
}

func runLookup(ctx context.Context, args []string, stdout io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ndc := fs.String("ndc", "", "NDC or UPC code")
	name := fs.String("name", "", "brand or generic name")
	ingredient := fs.String("ingredient", "", "active ingredient")
	query := fs.String("q", "", "raw openFDA search expression")
	limit := fs.Int("limit", fda.DefaultLimit, "maximum records")
	baseURL := fs.String("fda-url", getenv("OPENFDA_BASE_URL"), "openFDA drug API base URL")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	client := fda.NewClient(getenv("OPENFDA_API_KEY"), *baseURL)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var res result.Result[[]fda.Label]
	switch {
	case *ndc != "":
		one := client.SearchByNDC(ctx, *ndc)
		if v, ok := one.Get(); ok {
			res = result.Found([]fda.Label{v})
		} else {
			res = result.Result[[]fda.Label]{Kind: one.Kind, Reason: one.Reason}
		}
	case *name != "":
		res = client.SearchByName(ctx, *name, *limit)
	case *ingredient != "":
		res = client.SearchByActiveIngredient(ctx, *ingredient, *limit)
	case *query != "":
		res = client.SearchGeneric(ctx, *query, *limit)
	default:
		return errUsage
	}
	if res.Kind == result.KindFailed {
		return fmt.Errorf("lookup failed: %w", res.Reason)
	}
	infos := []domain.MedicationInfo{}
	if labels, ok := res.Get(); ok {
		infos = fda.FormatAll(labels)
	}
	return printJSON(stdout, infos)
}

func runImprint(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	text := args[0]
	if text == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(raw)
	}
	imprint, ok := classify.ExtractImprint(text)
	return printJSON(stdout, map[string]any{"imprint": imprint, "found": ok})
}

// runIdentify runs a full pill or imprint scan against the live services
// with an in-memory history.
func runIdentify(ctx context.Context, args []string, stdout io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("identify", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kind := fs.String("type", "pill", "pill or imprint")
	path := fs.String("image", "", "image file")
	if err := fs.Parse(args); err != nil || *path == "" {
		return errUsage
	}
	scanType, ok := domain.ParseScanType(strings.ToLower(*kind))
	if !ok || scanType == domain.ScanBarcode {
		return errUsage
	}
	img, err := os.ReadFile(*path)
	if err != nil {
		return err
	}
	visionClient, err := vision.NewClient(getenv("GOOGLE_VISION_API_KEY"), getenv("GOOGLE_VISION_BASE_URL"))
	if err != nil {
		return err
	}
	lookup := fda.NewClient(getenv("OPENFDA_API_KEY"), getenv("OPENFDA_BASE_URL"))
	scanner := scan.NewScanner(visionClient, lookup, store.NewMemoryStore(), nil)

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	out, err := scanner.Scan(ctx, "pillctl", scan.Request{Type: scanType, Image: img})
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
