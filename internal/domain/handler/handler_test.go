package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mailstead/internal/dnscheck"
	"mailstead/internal/domain/models"
	"mailstead/internal/domain/service"
	"mailstead/internal/domain/store"
	"mailstead/internal/gateway/cloudflare"
	"mailstead/internal/gateway/ses"
	"mailstead/internal/worker/provision"
	"mailstead/internal/worker/verify"
)

func TestCreateDomainViaHandler(t *testing.T) {
	router, _ := newDomainRouter(t)

	rec := postJSON(t, router, "/domains", `{"name":"Sender.Example.COM"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating domain, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID     uuid.UUID `json:"id"`
		Name   string    `json:"name"`
		Status string    `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected id in response")
	}
	if created.Name != "sender.example.com" {
		t.Fatalf("expected normalized name, got %q", created.Name)
	}
	if created.Status != "pending" {
		t.Fatalf("expected pending in create response, got %q", created.Status)
	}

	// Provisioning ran on the dispatcher; a fresh read shows the result.
	getRec := doRequest(t, router, http.MethodGet, "/domains/"+created.ID.String(), "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching domain, got %d", getRec.Code)
	}

	var fetched struct {
		Status              string `json:"status"`
		ProviderIdentityRef string `json:"provider_identity_ref"`
		ExpectedDNSRecords  []struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"expected_dns_records"`
	}
	if err := json.NewDecoder(getRec.Body).Decode(&fetched); err != nil {
		t.Fatalf("failed to decode get response: %v", err)
	}
	if fetched.Status != "verifying" {
		t.Fatalf("expected verifying after provisioning, got %q", fetched.Status)
	}
	if fetched.ProviderIdentityRef != "mock:identity/sender.example.com" {
		t.Fatalf("unexpected provider identity ref %q", fetched.ProviderIdentityRef)
	}
	if len(fetched.ExpectedDNSRecords) != 5 {
		t.Fatalf("expected 5 expected records (3 DKIM + SPF + DMARC), got %d", len(fetched.ExpectedDNSRecords))
	}
}

func TestCreateDomainRejectsBlankName(t *testing.T) {
	router, _ := newDomainRouter(t)

	rec := postJSON(t, router, "/domains", `{"name":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", rec.Code)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error != "validation_failed" {
		t.Fatalf("expected validation_failed, got %q", errResp.Error)
	}
}

func TestCreateDomainMalformedBody(t *testing.T) {
	router, _ := newDomainRouter(t)

	rec := postJSON(t, router, "/domains", `{"name":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestCreateDomainRejectsNonJSONContentType(t *testing.T) {
	router, _ := newDomainRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/domains", bytes.NewReader([]byte("name=example.com")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for form content type, got %d", rec.Code)
	}
}

func TestCreateDomainDuplicateConflicts(t *testing.T) {
	router, _ := newDomainRouter(t)

	first := postJSON(t, router, "/domains", `{"name":"dupe.example.com"}`)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 for first create, got %d", first.Code)
	}

	second := postJSON(t, router, "/domains", `{"name":"DUPE.example.com"}`)
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", second.Code)
	}
}

func TestListDomainsViaHandler(t *testing.T) {
	router, _ := newDomainRouter(t)

	for _, name := range []string{"one.example.com", "two.example.com"} {
		if rec := postJSON(t, router, "/domains", `{"name":"`+name+`"}`); rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 creating %s, got %d", name, rec.Code)
		}
	}

	rec := doRequest(t, router, http.MethodGet, "/domains", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing domains, got %d", rec.Code)
	}

	var list struct {
		Domains []struct {
			Name string `json:"name"`
		} `json:"domains"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if list.Total != 2 || len(list.Domains) != 2 {
		t.Fatalf("expected 2 domains, got total=%d len=%d", list.Total, len(list.Domains))
	}
	if list.Domains[0].Name != "one.example.com" {
		t.Fatalf("expected creation order, got %q first", list.Domains[0].Name)
	}
}

func TestGetDomainRejectsMalformedID(t *testing.T) {
	router, _ := newDomainRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/domains/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestGetUnknownDomainReturns404(t *testing.T) {
	router, _ := newDomainRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/domains/"+uuid.New().String(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown domain, got %d", rec.Code)
	}
}

func TestDeleteDomainViaHandler(t *testing.T) {
	router, _ := newDomainRouter(t)

	domainID := createDomain(t, router, "gone.example.com")

	rec := doRequest(t, router, http.MethodDelete, "/domains/"+domainID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting domain, got %d", rec.Code)
	}

	getRec := doRequest(t, router, http.MethodGet, "/domains/"+domainID, "")
	if getRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getRec.Code)
	}
}

func TestVerifyDomainConfirms(t *testing.T) {
	router, _ := newDomainRouter(t)

	domainID := createDomain(t, router, "ready.example.com")

	rec := doRequest(t, router, http.MethodPost, "/domains/"+domainID+"/verify", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for verify, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status     string  `json:"status"`
		VerifiedAt *string `json:"verified_at"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode verify response: %v", err)
	}
	if resp.Status != "verified" {
		t.Fatalf("expected verified after provider confirmation, got %q", resp.Status)
	}
	if resp.VerifiedAt == nil {
		t.Fatalf("expected verified_at to be set")
	}
}

func TestVerifyDomainStillWaiting(t *testing.T) {
	router, identity := newDomainRouter(t)
	identity.ConfirmAfterChecks = 3

	domainID := createDomain(t, router, "slow.example.com")

	rec := doRequest(t, router, http.MethodPost, "/domains/"+domainID+"/verify", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for verify, got %d", rec.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode verify response: %v", err)
	}
	if resp.Status != "verifying" {
		t.Fatalf("expected domain to stay verifying, got %q", resp.Status)
	}
}

func TestCheckDNSViaHandler(t *testing.T) {
	router, _ := newDomainRouter(t)

	domainID := createDomain(t, router, "checked.example.com")

	rec := doRequest(t, router, http.MethodGet, "/domains/"+domainID+"/dns", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for dns check, got %d", rec.Code)
	}

	var resp struct {
		Domain   string `json:"domain"`
		Status   string `json:"status"`
		AllFound bool   `json:"all_found"`
		Records  []struct {
			Found  bool   `json:"found"`
			Detail string `json:"detail"`
		} `json:"records"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode dns check response: %v", err)
	}
	if resp.Domain != "checked.example.com" {
		t.Fatalf("expected domain name in report, got %q", resp.Domain)
	}
	if resp.Status != "verifying" {
		t.Fatalf("expected dns check to leave status verifying, got %q", resp.Status)
	}
	if !resp.AllFound {
		t.Fatalf("expected all records found with the stub resolver")
	}
	if len(resp.Records) != 5 {
		t.Fatalf("expected 5 record results, got %d", len(resp.Records))
	}
	for _, record := range resp.Records {
		if !record.Found || record.Detail == "" {
			t.Fatalf("expected found record with detail, got %+v", record)
		}
	}
}

// createDomain registers a domain and returns its id. Provisioning has
// already run by the time this returns.
func createDomain(t *testing.T, router http.Handler, name string) string {
	t.Helper()
	rec := postJSON(t, router, "/domains", `{"name":"`+name+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating %s, got %d: %s", name, rec.Code, rec.Body.String())
	}
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return created.ID.String()
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// inlineDispatcher runs dispatched tasks synchronously so tests observe
// provisioning results on the very next request.
type inlineDispatcher struct{}

func (inlineDispatcher) RunOnce(_ string, task func(context.Context) error) {
	_ = task(context.Background())
}

// stubChecker reports every expected record as published.
type stubChecker struct{}

func (stubChecker) VerifyAll(_ context.Context, records []models.DNSRecord) dnscheck.Report {
	report := dnscheck.Report{}
	for _, record := range records {
		report.Results = append(report.Results, dnscheck.Result{
			Record:      record,
			Found:       true,
			ConfirmedBy: "8.8.8.8:53",
		})
	}
	return report
}

func newDomainRouter(t *testing.T) (http.Handler, *ses.Mock) {
	t.Helper()
	domains := store.NewInMemory()
	identity := ses.NewMock()
	zone := cloudflare.NewMock()
	checker := stubChecker{}
	provisionJob := provision.NewJob(domains, identity, zone, "amazonses.com")
	verifyJob := verify.NewJob(domains, identity, checker, verify.NewMemoryLocker())
	svc := service.New(domains, identity, zone, checker, provisionJob, verifyJob, inlineDispatcher{})
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger, nil)
	r := chi.NewRouter()
	h.Register(r)
	return r, identity
}
