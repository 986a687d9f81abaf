// Command schema-harvester folds JSON documents read from a file or stdin
// into one JSON schema and prints it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/usestring/schema-harvester/internal/harvest"
	"github.com/usestring/schema-harvester/internal/ingest"
	"github.com/usestring/schema-harvester/internal/logging"
	"github.com/usestring/schema-harvester/internal/selector"
	"github.com/usestring/schema-harvester/internal/validate"
	"github.com/usestring/schema-harvester/pkg/jsonschema"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	file        string
	ndjson      bool
	selectExpr  string
	id          string
	title       string
	description string
	check       bool
	compact     bool
	logLevel    string
	logFormat   string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	meta := harvest.DefaultMetadata()
	var o options

	fs := flag.NewFlagSet("schema-harvester", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.file, "file", "", "JSON file to read (default: stdin)")
	fs.BoolVar(&o.ndjson, "ndjson", false, "read one document per line and skip lines that are not valid JSON")
	fs.StringVar(&o.selectExpr, "select", "", "jq expression selecting the payload of each document, e.g. .data")
	fs.StringVar(&o.id, "id", meta.ID, "$id of the generated schema")
	fs.StringVar(&o.title, "title", meta.Title, "title of the generated schema")
	fs.StringVar(&o.description, "description", meta.Description, "description of the generated schema")
	fs.BoolVar(&o.check, "check", false, "validate every document against the generated schema")
	fs.BoolVar(&o.compact, "compact", false, "print the schema on a single line")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", logging.FormatText, "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = o.logLevel
	logCfg.Format = o.logFormat
	handler, err := logging.NewHandler(stderr, logCfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	logger := slog.New(handler)

	sel, err := selector.Compile(o.selectExpr)
	if err != nil {
		logger.Error("invalid select expression", "error", err)
		return exitUsage
	}

	input := stdin
	if o.file != "" {
		f, err := os.Open(o.file)
		if err != nil {
			logger.Error("failed to open input", "error", err)
			return exitFailure
		}
		defer f.Close()
		input = f
	}

	mode := ingest.Concatenated
	if o.ndjson {
		mode = ingest.Lines
	}
	h := harvest.New(harvest.Metadata{ID: o.id, Title: o.title, Description: o.description}, harvest.WithSelector(sel))
	reader := ingest.NewReader(input, mode)
	var (
		kept    []ingest.Document
		total   int
		readErr error
	)
	for {
		doc, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ingest.IsRecoverable(err) {
				logger.Warn("skipping invalid document", "error", err)
				continue
			}
			readErr = err
			break
		}
		total++
		if o.check {
			doc.Raw = nil
			kept = append(kept, doc)
		}
		if _, err := h.ObserveValue(doc.Value); err != nil {
			if errors.Is(err, harvest.ErrEmptyPayload) {
				logger.Debug("document has no payload", "index", doc.Index)
				continue
			}
			logger.Warn("skipping document", "index", doc.Index, "error", err)
		}
	}
	if readErr != nil {
		logger.Error("failed to read input, printing the schema of the documents before it", "error", readErr)
	}
	stats := h.Stats()
	logger.Info("harvested", "documents", total, "observed", stats.Observed, "changed", stats.Changed)

	var out []byte
	if o.compact {
		out, err = jsonschema.Marshal(h.Hypothesis())
	} else {
		out, err = h.Render()
	}
	if err != nil {
		logger.Error("failed to render schema", "error", err)
		return exitFailure
	}
	fmt.Fprintln(stdout, string(out))

	code := exitOK
	if o.check {
		code = check(out, kept, sel, stderr)
	}
	if readErr != nil {
		return exitFailure
	}
	return code
}

// check validates the selected payload of every document against schema.
func check(schema []byte, docs []ingest.Document, sel *selector.Selector, stderr io.Writer) int {
	compiled, err := validate.Compile(schema)
	if err != nil {
		fmt.Fprintf(stderr, "generated schema does not compile: %v\n", err)
		return exitFailure
	}
	failed := 0
	for _, doc := range docs {
		payload, ok, err := sel.Select(doc.Value)
		if err != nil || !ok {
			continue
		}
		violations := compiled.Validate(payload)
		if len(violations) == 0 {
			continue
		}
		failed++
		for _, v := range violations {
			fmt.Fprintf(stderr, "document %d: %s\n", doc.Index, v)
		}
	}
	if failed > 0 {
		fmt.Fprintf(stderr, "%d of %d documents do not match the generated schema\n", failed, len(docs))
		return exitFailure
	}
	return exitOK
}
