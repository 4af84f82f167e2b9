package server

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/export"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/ledger"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/loader"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/report"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

// Multipart field names.
const (
	FieldCurrent           = "current"
	FieldPrior             = "prior"
	FieldThresholdPercent  = "threshold_percent"
	FieldAbsoluteThreshold = "absolute_threshold"
	FieldPolicy            = "policy"
)

// handleAnalyze handles POST /api/v1/analyze.
// A request missing either file is not an error: it answers 200 with state
// "waiting_for_input".
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	result, ok := s.compute(w, r)
	if !ok {
		return
	}

	message := ""
	if !result.Ready() {
		message = report.WaitingMessage
	}

	slog.Info("analysis complete",
		"principal", PrincipalFromContext(r.Context()),
		"state", result.State,
		"rows", len(result.Rows),
		"flagged", result.FlaggedCount(),
	)

	writeJSON(w, http.StatusOK, newAnalyzeResponse(result, message))
}

// handleExport handles POST /api/v1/export.
// The response is a CSV attachment, or an Excel workbook with ?format=xlsx.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	result, ok := s.compute(w, r)
	if !ok {
		return
	}
	if !result.Ready() {
		writeJSONError(w, http.StatusBadRequest, "missing_input", report.WaitingMessage)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, result.Rows, format); err != nil {
		slog.Error("export failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to export report")
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == export.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="variance-report.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// compute parses the multipart request and runs the pipeline. On failure it writes the
// error response and returns false.
func (s *Server) compute(w http.ResponseWriter, r *http.Request) (pipeline.Result, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart/form-data body")
		return pipeline.Result{}, false
	}
	defer r.MultipartForm.RemoveAll()

	cfg := s.opts.Pipeline
	thresholds, err := overrideThresholds(cfg.Thresholds, r.MultipartForm)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return pipeline.Result{}, false
	}
	cfg.Thresholds = thresholds

	current, err := loadUpload(r, FieldCurrent)
	if err != nil {
		writeLoadError(w, err)
		return pipeline.Result{}, false
	}
	prior, err := loadUpload(r, FieldPrior)
	if err != nil {
		writeLoadError(w, err)
		return pipeline.Result{}, false
	}

	result, err := pipeline.Compute(current, prior, cfg)
	if err != nil {
		writeLoadError(w, err)
		return pipeline.Result{}, false
	}
	return result, true
}

// loadUpload loads an uploaded trial balance. A missing field yields a nil table.
func loadUpload(r *http.Request, field string) (*ledger.PeriodTable, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s upload: %w", field, err)
	}
	defer file.Close()

	return loadPart(file, header)
}

func loadPart(file multipart.File, header *multipart.FileHeader) (*ledger.PeriodTable, error) {
	format, err := loader.DetectFormat(header.Filename)
	if err != nil {
		return nil, err
	}
	return loader.Load(header.Filename, file, format)
}

// overrideThresholds applies the optional threshold form fields to base.
func overrideThresholds(base variance.Thresholds, form *multipart.Form) (variance.Thresholds, error) {
	t := base
	value := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	if v := value(FieldPolicy); v != "" {
		policy, err := variance.ParsePolicy(v)
		if err != nil {
			return variance.Thresholds{}, err
		}
		t.Policy = policy
	}
	if v := value(FieldThresholdPercent); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return variance.Thresholds{}, fmt.Errorf("invalid %s: %q", FieldThresholdPercent, v)
		}
		t.ThresholdPercent = d
	}
	if v := value(FieldAbsoluteThreshold); v != "" {
		if strings.EqualFold(v, "off") {
			t.AbsoluteThreshold = decimal.NullDecimal{}
		} else {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return variance.Thresholds{}, fmt.Errorf("invalid %s: %q", FieldAbsoluteThreshold, v)
			}
			t.AbsoluteThreshold = decimal.NewNullDecimal(d)
		}
	}
	// A request that switches to percent_or_absolute without naming an amount gets the
	// default. A configured "off" stays off.
	switchedPolicy := value(FieldPolicy) != "" && base.Policy != variance.PolicyPercentOrAbsolute
	if switchedPolicy && t.Policy == variance.PolicyPercentOrAbsolute && !t.AbsoluteThreshold.Valid && value(FieldAbsoluteThreshold) == "" {
		t.AbsoluteThreshold = decimal.NewNullDecimal(decimal.NewFromInt(variance.DefaultAbsoluteThreshold))
	}

	if err := t.Validate(); err != nil {
		return variance.Thresholds{}, err
	}
	return t, nil
}

// writeLoadError maps pipeline errors to responses. Malformed input is the caller's
// problem and answers 422.
func writeLoadError(w http.ResponseWriter, err error) {
	var malformed *loader.MalformedInputError
	if errors.As(err, &malformed) {
		writeJSONError(w, http.StatusUnprocessableEntity, "malformed_input", malformed.Error())
		return
	}

	slog.Error("analysis failed", "error", err)
	writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
}
