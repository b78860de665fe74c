package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"compliancehub/internal/app"
	"compliancehub/internal/platform/config"
	"compliancehub/pkg/platform/middleware/idempotency"
)

type ScenarioSuite struct {
	suite.Suite
	app     *app.App
	server  *httptest.Server
	tokens  map[string]string
	buyerID string
}

func TestScenarioSuite(t *testing.T) {
	suite.Run(t, new(ScenarioSuite))
}

func (s *ScenarioSuite) SetupTest() {
	ctx := context.Background()
	mr := miniredis.RunT(s.T())

	cfg := config.Default()
	cfg.Auth.SaltRounds = 4
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := app.Build(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), app.Options{
		Registerer: prometheus.NewRegistry(),
	})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = a.Close() })
	s.app = a

	_, err = a.Identity.Seed(ctx)
	s.Require().NoError(err)

	s.server = httptest.NewServer(a.Handler)
	s.T().Cleanup(s.server.Close)

	s.tokens = map[string]string{}
	for _, email := range []string{"admin@example.com", "buyer@example.com", "factory1@example.com", "factory2@example.com"} {
		var res map[string]any
		code := s.call(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "password123"}, &res)
		s.Require().Equal(http.StatusOK, code, email)
		s.tokens[email] = res["accessToken"].(string)
		if email == "buyer@example.com" {
			s.buyerID = res["user"].(map[string]any)["id"].(string)
		}
	}
}

func (s *ScenarioSuite) call(method, path, token string, body any, out any, headers ...string) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *ScenarioSuite) createEvidence(factoryEmail, docType string) (string, string) {
	var res map[string]string
	code := s.call(http.MethodPost, "/evidence", s.tokens[factoryEmail], map[string]string{
		"name": "ISO 9001", "docType": docType, "expiry": "2026-12-31",
	}, &res)
	s.Require().Equal(http.StatusCreated, code)
	return res["evidenceId"], res["versionId"]
}

func (s *ScenarioSuite) TestEvidenceVersioning() {
	evidenceID, _ := s.createEvidence("factory1@example.com", "Certificate")

	var added map[string]any
	code := s.call(http.MethodPost, "/evidence/"+evidenceID+"/versions", s.tokens["factory1@example.com"],
		map[string]string{"notes": "renewed", "expiry": "2027-12-31"}, &added)
	s.Require().Equal(http.StatusCreated, code)
	s.Equal(2.0, added["versionNumber"])

	var got map[string]any
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/evidence/"+evidenceID, s.tokens["factory1@example.com"], nil, &got))
	s.Len(got["versions"], 2)
}

func (s *ScenarioSuite) TestCrossTenantEvidenceIsHidden() {
	evidenceID, _ := s.createEvidence("factory1@example.com", "Certificate")

	var errBody map[string]string
	code := s.call(http.MethodGet, "/evidence/"+evidenceID, s.tokens["factory2@example.com"], nil, &errBody)
	s.Equal(http.StatusForbidden, code)
	s.Equal("forbidden", errBody["error"])

	var list []any
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/evidence", s.tokens["factory2@example.com"], nil, &list))
	s.Empty(list)
}

func (s *ScenarioSuite) TestRequestCompletesWhenEveryItemIsFulfilled() {
	var created map[string]any
	code := s.call(http.MethodPost, "/requests", s.tokens["buyer@example.com"], map[string]any{
		"factoryId": "F001",
		"title":     "Annual audit",
		"items":     []map[string]string{{"docType": "Certificate"}, {"docType": "Report"}},
	}, &created)
	s.Require().Equal(http.StatusCreated, code)
	s.Equal("OPEN", created["status"])
	requestID := created["id"].(string)
	items := created["items"].([]any)
	s.Require().Len(items, 2)
	for _, it := range items {
		s.Equal("PENDING", it.(map[string]any)["status"])
	}

	certID, certVersion := s.createEvidence("factory1@example.com", "Certificate")
	reportID, reportVersion := s.createEvidence("factory1@example.com", "Report")
	factory := s.tokens["factory1@example.com"]

	var first map[string]any
	firstItem := items[0].(map[string]any)["id"].(string)
	code = s.call(http.MethodPost, "/requests/"+requestID+"/items/"+firstItem+"/fulfill", factory,
		map[string]string{"evidenceId": certID, "versionId": certVersion}, &first)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("OPEN", first["request"].(map[string]any)["status"])

	var second map[string]any
	secondItem := items[1].(map[string]any)["id"].(string)
	code = s.call(http.MethodPost, "/requests/"+requestID+"/items/"+secondItem+"/fulfill", factory,
		map[string]string{"evidenceId": reportID, "versionId": reportVersion}, &second)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("COMPLETED", second["request"].(map[string]any)["status"])

	var mine []map[string]any
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/requests", s.tokens["buyer@example.com"], nil, &mine))
	s.Require().Len(mine, 1)
	s.Equal("COMPLETED", mine[0]["status"])
	s.Equal(s.buyerID, mine[0]["buyerId"])

	var inbox []map[string]any
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/factory/requests", factory, nil, &inbox))
	s.Len(inbox, 1)

	var trail []map[string]any
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/audit?action=FULFILL_ITEM", s.tokens["admin@example.com"], nil, &trail))
	s.Len(trail, 2)
}

func (s *ScenarioSuite) TestFulfilmentChecksEvidenceOwnership() {
	var created map[string]any
	s.Require().Equal(http.StatusCreated, s.call(http.MethodPost, "/requests", s.tokens["buyer@example.com"], map[string]any{
		"factoryId": "F001",
		"title":     "Spot check",
		"items":     []map[string]string{{"docType": "Certificate"}},
	}, &created))
	requestID := created["id"].(string)
	itemID := created["items"].([]any)[0].(map[string]any)["id"].(string)
	path := "/requests/" + requestID + "/items/" + itemID + "/fulfill"
	factory := s.tokens["factory1@example.com"]

	foreignID, foreignVersion := s.createEvidence("factory2@example.com", "Certificate")
	var errBody map[string]string
	code := s.call(http.MethodPost, path, factory, map[string]string{"evidenceId": foreignID, "versionId": foreignVersion}, &errBody)
	s.Equal(http.StatusForbidden, code)

	ownID, _ := s.createEvidence("factory1@example.com", "Certificate")
	_, otherVersion := s.createEvidence("factory1@example.com", "Certificate")
	code = s.call(http.MethodPost, path, factory, map[string]string{"evidenceId": ownID, "versionId": otherVersion}, &errBody)
	s.Equal(http.StatusNotFound, code)
	s.Equal("not_found", errBody["error"])
}

func (s *ScenarioSuite) TestRolesAreEnforced() {
	var errBody map[string]string
	s.Equal(http.StatusForbidden, s.call(http.MethodPost, "/evidence", s.tokens["buyer@example.com"],
		map[string]string{"name": "x", "docType": "y", "expiry": "2026-12-31"}, &errBody))
	var trail []map[string]any
	s.Equal(http.StatusOK, s.call(http.MethodGet, "/audit", s.tokens["factory1@example.com"], nil, &trail))
	s.Equal(http.StatusUnauthorized, s.call(http.MethodGet, "/evidence", "", nil, &errBody))
	s.Equal(http.StatusUnauthorized, s.call(http.MethodGet, "/evidence", "not-a-token", nil, &errBody))
}

func (s *ScenarioSuite) TestProfileAndRegistration() {
	var profile map[string]any
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/auth/profile", s.tokens["factory1@example.com"], nil, &profile))
	s.Equal("F001", profile["factoryId"])

	var registered map[string]any
	code := s.call(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "new.factory@example.com", "password": "password123", "role": "factory", "factoryId": "F009",
	}, &registered)
	s.Require().Equal(http.StatusCreated, code)
	s.NotEmpty(registered["accessToken"])

	var errBody map[string]string
	code = s.call(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "NEW.factory@example.com", "password": "password123",
	}, &errBody)
	s.Equal(http.StatusConflict, code)
}

func (s *ScenarioSuite) TestIdempotentCreateReplays() {
	body := map[string]string{"name": "ISO 14001", "docType": "Certificate", "expiry": "2026-12-31"}
	token := s.tokens["factory1@example.com"]

	var first, second map[string]string
	s.Require().Equal(http.StatusCreated, s.call(http.MethodPost, "/evidence", token, body, &first, idempotency.HeaderKey, "create-1"))
	s.Require().Equal(http.StatusCreated, s.call(http.MethodPost, "/evidence", token, body, &second, idempotency.HeaderKey, "create-1"))
	s.Equal(first["evidenceId"], second["evidenceId"])

	var list []any
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/evidence", token, nil, &list))
	s.Len(list, 1)
}

func (s *ScenarioSuite) TestRepeatedFailedLoginsLockTheAccount() {
	creds := map[string]string{"email": "buyer2@example.com", "password": "wrong-password"}
	var errBody map[string]string
	for range 5 {
		s.Require().Equal(http.StatusUnauthorized, s.call(http.MethodPost, "/auth/login", "", creds, &errBody))
	}
	creds["password"] = "password123"
	s.Equal(http.StatusTooManyRequests, s.call(http.MethodPost, "/auth/login", "", creds, &errBody))
	s.Equal("rate_limited", errBody["error"])
}

func (s *ScenarioSuite) TestHealth() {
	var health map[string]string
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/healthz", "", nil, &health))
	s.Equal("ok", health["status"])
}

func TestOpenBackendRejectsUnknownDriver(t *testing.T) {
	_, err := app.OpenBackend(context.Background(), config.DatabaseConfig{Driver: "oracle"}, false)
	if err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}

func TestGormBackendMigratesAndServes(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Driver: config.DriverSQLite}
	cfg.Auth.SaltRounds = 4

	a, err := app.Build(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), app.Options{
		Registerer: prometheus.NewRegistry(),
		Migrate:    true,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	created, err := a.Identity.Seed(ctx)
	if err != nil || created != 5 {
		t.Fatalf("seed: created=%d err=%v", created, err)
	}
	if err := a.Backend.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
