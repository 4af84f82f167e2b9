package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

const currentCSV = `Account Code,Account Name,Debit,Credit
1000,Cash,900,0
4000,Sales,0,5000
5000,Rent,1000,0
`

const priorCSV = `Account Code,Account Name,Debit,Credit
4000,Sales,0,4000
5000,Rent,1000,0
`

type upload struct {
	field, filename, content string
}

func multipartBody(t *testing.T, uploads []upload, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, u := range uploads {
		part, err := mw.CreateFormFile(u.field, u.filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(u.content)); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func newTestServer(opts Options) http.Handler {
	if opts.Pipeline.Taxonomy == nil {
		opts.Pipeline = pipeline.DefaultConfig()
	}
	return New(opts).Router()
}

func post(t *testing.T, h http.Handler, path string, uploads []upload, fields map[string]string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, uploads, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("GET /health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAnalyze(t *testing.T) {
	h := newTestServer(Options{})
	rec := post(t, h, "/api/v1/analyze", []upload{
		{FieldCurrent, "current.csv", currentCSV},
		{FieldPrior, "prior.csv", priorCSV},
	}, nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if resp.State != string(pipeline.StateReady) {
		t.Errorf("State = %q, want ready", resp.State)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(resp.Rows))
	}
	if resp.FlaggedCount != 1 {
		t.Errorf("FlaggedCount = %d, want 1", resp.FlaggedCount)
	}

	cash := resp.Rows[0]
	if cash.AccountCode != "1000" || cash.VariancePercent.Valid {
		t.Errorf("cash row = %+v, want undefined percent", cash)
	}
	sales := resp.Rows[1]
	if !sales.Flagged || sales.VariancePercent.Decimal.String() != "25" {
		t.Errorf("sales row = %+v", sales)
	}

	if resp.Income == nil || resp.Income.NetProfit.String() != "-6000" {
		t.Errorf("Income = %+v", resp.Income)
	}
	if len(resp.Questions) != 1 || !strings.Contains(resp.Questions[0].Text, "Sales decreased") {
		t.Errorf("Questions = %+v", resp.Questions)
	}
	if !strings.Contains(rec.Body.String(), `"variance_percent":null`) {
		t.Errorf("undefined percent should encode as null: %s", rec.Body.String())
	}
}

func TestAnalyzeWaiting(t *testing.T) {
	h := newTestServer(Options{})
	rec := post(t, h, "/api/v1/analyze", []upload{
		{FieldCurrent, "current.csv", currentCSV},
	}, nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != string(pipeline.StateWaiting) || resp.Message == "" {
		t.Errorf("resp = %+v, want waiting with message", resp)
	}
	if len(resp.Rows) != 0 || resp.Income != nil {
		t.Errorf("waiting response should carry no output: %+v", resp)
	}
}

func TestAnalyzeThresholdOverrides(t *testing.T) {
	h := newTestServer(Options{})
	uploads := []upload{
		{FieldCurrent, "current.csv", currentCSV},
		{FieldPrior, "prior.csv", priorCSV},
	}

	tests := []struct {
		name        string
		fields      map[string]string
		wantStatus  int
		wantFlagged int
	}{
		{name: "raise threshold", fields: map[string]string{FieldThresholdPercent: "30"}, wantStatus: http.StatusOK, wantFlagged: 0},
		{name: "absolute policy", fields: map[string]string{FieldThresholdPercent: "30", FieldPolicy: "percent_or_absolute", FieldAbsoluteThreshold: "500"}, wantStatus: http.StatusOK, wantFlagged: 2},
		{name: "out of range", fields: map[string]string{FieldThresholdPercent: "75"}, wantStatus: http.StatusBadRequest},
		{name: "not a number", fields: map[string]string{FieldThresholdPercent: "ten"}, wantStatus: http.StatusBadRequest},
		{name: "unknown policy", fields: map[string]string{FieldPolicy: "median"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/api/v1/analyze", uploads, tt.fields, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp AnalyzeResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.FlaggedCount != tt.wantFlagged {
				t.Errorf("FlaggedCount = %d, want %d", resp.FlaggedCount, tt.wantFlagged)
			}
		})
	}
}

func TestAnalyzeKeepsConfiguredAbsoluteOff(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.Thresholds.Policy = variance.PolicyPercentOrAbsolute
	cfg.Thresholds.AbsoluteThreshold = decimal.NullDecimal{}
	h := newTestServer(Options{Pipeline: cfg})

	uploads := []upload{
		{FieldCurrent, "current.csv", currentCSV},
		{FieldPrior, "prior.csv", priorCSV},
	}
	rec := post(t, h, "/api/v1/analyze", uploads, map[string]string{FieldThresholdPercent: "50"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Thresholds.Policy != variance.PolicyPercentOrAbsolute {
		t.Errorf("Policy = %q, expected percent_or_absolute", resp.Thresholds.Policy)
	}
	if resp.Thresholds.AbsoluteThreshold.Valid {
		t.Errorf("AbsoluteThreshold = %s, expected disabled", resp.Thresholds.AbsoluteThreshold.Decimal)
	}
	if !strings.Contains(rec.Body.String(), `"absolute_threshold":null`) {
		t.Errorf("disabled absolute threshold should encode as null: %s", rec.Body.String())
	}
}

func TestAnalyzePolicySwitchUsesDefaultAbsolute(t *testing.T) {
	h := newTestServer(Options{})
	uploads := []upload{
		{FieldCurrent, "current.csv", currentCSV},
		{FieldPrior, "prior.csv", priorCSV},
	}
	rec := post(t, h, "/api/v1/analyze", uploads, map[string]string{FieldPolicy: "percent_or_absolute"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	abs := resp.Thresholds.AbsoluteThreshold
	if !abs.Valid || !abs.Decimal.Equal(decimal.NewFromInt(variance.DefaultAbsoluteThreshold)) {
		t.Errorf("AbsoluteThreshold = %v, expected %d", abs, variance.DefaultAbsoluteThreshold)
	}
}

func TestAnalyzeMalformed(t *testing.T) {
	h := newTestServer(Options{})
	rec := post(t, h, "/api/v1/analyze", []upload{
		{FieldCurrent, "current.csv", "Account Code,Account Name,Debit,Credits\n1000,Cash,1,0\n"},
		{FieldPrior, "prior.csv", priorCSV},
	}, nil, nil)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "malformed_input" || !strings.Contains(resp.ErrorDescription, `"credit"`) {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAnalyzeRejectsNonMultipart(t *testing.T) {
	h := newTestServer(Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExport(t *testing.T) {
	h := newTestServer(Options{})
	rec := post(t, h, "/api/v1/export", []upload{
		{FieldCurrent, "current.csv", currentCSV},
		{FieldPrior, "prior.csv", priorCSV},
	}, nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "variance-report.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want header + 3", len(records))
	}
	if records[0][0] != "Account Code" {
		t.Errorf("header = %v", records[0])
	}
}

func TestExportErrors(t *testing.T) {
	h := newTestServer(Options{})

	rec := post(t, h, "/api/v1/export", []upload{{FieldCurrent, "current.csv", currentCSV}}, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing prior: status = %d, want 400", rec.Code)
	}

	rec = post(t, h, "/api/v1/export?format=pdf", []upload{
		{FieldCurrent, "current.csv", currentCSV},
		{FieldPrior, "prior.csv", priorCSV},
	}, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad format: status = %d, want 400", rec.Code)
	}
}

func TestPrincipalMiddleware(t *testing.T) {
	h := newTestServer(Options{PrincipalHeader: "X-Authenticated-User", RequirePrincipal: true})
	uploads := []upload{{FieldCurrent, "current.csv", currentCSV}}

	rec := post(t, h, "/api/v1/analyze", uploads, nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without principal: status = %d, want 401", rec.Code)
	}

	rec = post(t, h, "/api/v1/analyze", uploads, nil, map[string]string{"X-Authenticated-User": "user-7"})
	if rec.Code != http.StatusOK {
		t.Errorf("with principal: status = %d, want 200", rec.Code)
	}

	// Health stays open.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d", rec.Code)
	}
}

func TestPrincipalFromContext(t *testing.T) {
	var got string
	h := PrincipalMiddleware("X-User", false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User", " alice ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "alice" {
		t.Errorf("PrincipalFromContext() = %q, want alice", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "" {
		t.Errorf("PrincipalFromContext() = %q, want empty", got)
	}
}
