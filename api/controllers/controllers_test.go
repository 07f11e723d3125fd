package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/troopfundraiser/frclient/internal/allocation"
	"github.com/troopfundraiser/frclient/internal/frconfig"
	"github.com/troopfundraiser/frclient/internal/leaderboard"
	"github.com/troopfundraiser/frclient/internal/orders"
	"github.com/troopfundraiser/frclient/pkg/auth"
	"github.com/troopfundraiser/frclient/pkg/auth/session"
	"github.com/troopfundraiser/frclient/pkg/config"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/types"
)

const testConfig = `{
  "kind": "mulch",
  "products": {
    "bags": {"label": "Bags", "unitPrice": "10.00", "priceBreaks": [{"gt": 50, "unitPrice": "8.00"}]},
    "spreading": {"label": "Spreading", "unitPrice": "2.00"}
  },
  "neighborhoods": [{"name": "Bancroft", "distributionPt": "Church"}],
  "deliveryDates": [{"id": "1", "date": "3/9/2024"}],
  "users": [{"id": "jdoe", "firstName": "Jane", "lastName": "Doe"}]
}`

type stubLoader struct{ err error }

func (s stubLoader) Load(context.Context, string) (*frconfig.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	return frconfig.Decode([]byte(testConfig))
}

type stubStore struct {
	orders   []*orders.Order
	filter   orders.QueryFilter
	upserted *orders.Order
	deleted  [2]string
	verified []orders.VerificationUpdate
	err      error
}

func (s *stubStore) Query(_ context.Context, filter orders.QueryFilter) ([]*orders.Order, error) {
	s.filter = filter
	return s.orders, s.err
}

func (s *stubStore) Upsert(_ context.Context, o *orders.Order) error {
	s.upserted = o
	return s.err
}

func (s *stubStore) Delete(_ context.Context, orderID, owner string) error {
	s.deleted = [2]string{orderID, owner}
	return s.err
}

func (s *stubStore) SubmitSpreadingComplete(context.Context, string, string, []string) error {
	return s.err
}

func (s *stubStore) SubmitVerification(_ context.Context, update orders.VerificationUpdate) error {
	s.verified = append(s.verified, update)
	return s.err
}

func (s *stubStore) SubmitVerifications(_ context.Context, updates []orders.VerificationUpdate) error {
	s.verified = append(s.verified, updates...)
	return s.err
}

func storesFor(store *stubStore) OrderStores {
	return func(string) OrderStore { return store }
}

func withCaller(req *http.Request, userID string, admin bool) *http.Request {
	ctx := session.WithID(req.Context(), "sess-1")
	ctx = auth.WithIdentity(ctx, &auth.Identity{UserID: userID, IsAdmin: admin})
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return body.Error
}

type stubSessions struct {
	created session.Tokens
	logout  string
}

func (s *stubSessions) Create(_ context.Context, tokens session.Tokens) (*session.Session, error) {
	s.created = tokens
	return &session.Session{ID: "sess-1", UserID: "jdoe"}, nil
}

func (s *stubSessions) Logout(_ context.Context, id string) error {
	s.logout = id
	return nil
}

func TestSessionCreateAndDelete(t *testing.T) {
	mgr := &stubSessions{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", strings.NewReader(`{"idToken":"id","refreshToken":"r"}`))
	resp := httptest.NewRecorder()
	SessionCreate(mgr, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if mgr.created.IDToken != "id" || mgr.created.RefreshToken != "r" {
		t.Fatalf("unexpected tokens %+v", mgr.created)
	}
	if !strings.Contains(resp.Body.String(), `"sessionId":"sess-1"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/session", strings.NewReader(`{}`))
	resp = httptest.NewRecorder()
	SessionCreate(mgr, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = withCaller(httptest.NewRequest(http.MethodDelete, "/api/v1/session", nil), "jdoe", false)
	resp = httptest.NewRecorder()
	SessionDelete(mgr, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || mgr.logout != "sess-1" {
		t.Fatalf("unexpected logout %d %q", resp.Code, mgr.logout)
	}
}

func TestListOrdersOwnerRules(t *testing.T) {
	store := &stubStore{}

	req := withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/orders?owner=asmith", nil), "jdoe", false)
	resp := httptest.NewRecorder()
	ListOrders(storesFor(store), nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/orders?owner=any&fields=name,phone", nil), "admin", true)
	resp = httptest.NewRecorder()
	ListOrders(storesFor(store), nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if store.filter.OrderOwner != orders.AnyOwner || len(store.filter.Fields) != 2 {
		t.Fatalf("unexpected filter %+v", store.filter)
	}

	req = withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/orders?owner=any", nil), "jdoe", false)
	resp = httptest.NewRecorder()
	ListOrders(storesFor(store), nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin any, got %d", resp.Code)
	}
}

func TestUpsertOrderPricesAndSaves(t *testing.T) {
	store := &stubStore{}
	body := `{"order":{"name":"Bob","neighborhood":"Bancroft","addr1":"1 Main","deliveryId":"1","products":{"bags":51},"cashPaid":"408"}}`

	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), "jdoe", false)
	resp := httptest.NewRecorder()
	UpsertOrder(storesFor(store), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if store.upserted == nil {
		t.Fatalf("expected upsert")
	}
	if store.upserted.OrderOwner != "jdoe" || store.upserted.OrderID == "" {
		t.Fatalf("unexpected order key %q/%q", store.upserted.OrderOwner, store.upserted.OrderID)
	}
	if !store.upserted.TotalAmt.Equal(decimal.RequireFromString("408")) {
		t.Fatalf("unexpected total %s", store.upserted.TotalAmt)
	}
}

func TestUpsertOrderRejectsBeforeSaving(t *testing.T) {
	store := &stubStore{}

	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"order":{"name":"Bob"}}`)), "jdoe", false)
	resp := httptest.NewRecorder()
	UpsertOrder(storesFor(store), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if store.upserted != nil {
		t.Fatalf("invalid order must not be saved")
	}

	body := `{"order":{"name":"Bob","orderOwner":"asmith","products":{"bags":1}},"originalOwner":"jdoe"}`
	req = withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), "jdoe", false)
	resp = httptest.NewRecorder()
	UpsertOrder(storesFor(store), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestUpsertOrderNonAdminCannotVerify(t *testing.T) {
	store := &stubStore{}
	body := `{"order":{"name":"Bob","neighborhood":"Bancroft","addr1":"1 Main","deliveryId":"1","products":{"bags":1},"cashPaid":"10","isVerified":true}}`

	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), "jdoe", false)
	resp := httptest.NewRecorder()
	UpsertOrder(storesFor(store), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", resp.Code, resp.Body.String())
	}
	if got := decodeError(t, resp); got.Code != string(pkgerrors.CodeForbidden) {
		t.Fatalf("unexpected code %q", got.Code)
	}
	if store.upserted != nil {
		t.Fatalf("self-verified order must not be saved")
	}

	req = withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), "admin", true)
	resp = httptest.NewRecorder()
	UpsertOrder(storesFor(store), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || store.upserted == nil || !store.upserted.IsVerified {
		t.Fatalf("admin save should keep the flag: %d %s", resp.Code, resp.Body.String())
	}
}

func TestUpsertOrderRefusesVerifiedRecord(t *testing.T) {
	const orderID = "9b2f6a52-3c1e-4d43-a1f4-0f3c7e5d2b10"
	store := &stubStore{orders: []*orders.Order{
		{OrderID: "other", OrderOwner: "jdoe"},
		{OrderID: orderID, OrderOwner: "jdoe", IsVerified: true},
	}}
	body := `{"order":{"orderId":"` + orderID + `","name":"Bob","neighborhood":"Bancroft","addr1":"1 Main","deliveryId":"1","products":{"bags":1},"cashPaid":"10"}}`

	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), "jdoe", false)
	resp := httptest.NewRecorder()
	UpsertOrder(storesFor(store), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", resp.Code, resp.Body.String())
	}
	if store.upserted != nil {
		t.Fatalf("verified order must not be overwritten")
	}
	if store.filter.OrderOwner != "jdoe" {
		t.Fatalf("lookup should be scoped to the owner, got %q", store.filter.OrderOwner)
	}

	store.orders[1].IsVerified = false
	req = withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), "jdoe", false)
	resp = httptest.NewRecorder()
	UpsertOrder(storesFor(store), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || store.upserted == nil {
		t.Fatalf("unverified order should save: %d %s", resp.Code, resp.Body.String())
	}
}

func TestDeleteOrderUsesPathAndOwner(t *testing.T) {
	store := &stubStore{}
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/orders/o-1", nil)
	req = withCaller(withURLParam(req, "orderId", "o-1"), "jdoe", false)
	resp := httptest.NewRecorder()
	DeleteOrder(storesFor(store), nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || store.deleted != [2]string{"o-1", "jdoe"} {
		t.Fatalf("unexpected delete %d %v", resp.Code, store.deleted)
	}
}

func TestVerifyOrdersReportsConflict(t *testing.T) {
	store := &stubStore{err: orders.ErrSubmissionInProgress}
	body := `{"updates":[{"orderId":"o-1","orderOwner":"jdoe","isVerified":true}]}`
	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/orders/verification", strings.NewReader(body)), "admin", true)
	resp := httptest.NewRecorder()
	VerifyOrders(storesFor(store), nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if len(store.verified) != 1 || !store.verified[0].IsVerified {
		t.Fatalf("unexpected updates %+v", store.verified)
	}
}

func TestReportCSVDownload(t *testing.T) {
	cfg, err := frconfig.Decode([]byte(testConfig))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	o := orders.New("jdoe")
	o.Name = "Bob"
	o.DeliveryID = "1"
	if err := o.SetProduct(cfg, "bags", 2); err != nil {
		t.Fatalf("set product: %v", err)
	}
	store := &stubStore{orders: []*orders.Order{o}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/full?format=csv", nil)
	req = withCaller(withURLParam(req, "view", "full"), "jdoe", false)
	resp := httptest.NewRecorder()
	Report(storesFor(store), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="full-report.csv"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "|") || strings.Contains(lines[0], "Actions") {
		t.Fatalf("unexpected csv %q", resp.Body.String())
	}
	if store.filter.OrderOwner != "jdoe" {
		t.Fatalf("unexpected owner %q", store.filter.OrderOwner)
	}
}

func TestReportUnknownViewAndFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/bogus", nil)
	req = withCaller(withURLParam(req, "view", "bogus"), "jdoe", false)
	resp := httptest.NewRecorder()
	Report(storesFor(&stubStore{}), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/full?format=pdf", nil)
	req = withCaller(withURLParam(req, "view", "full"), "jdoe", false)
	resp = httptest.NewRecorder()
	Report(storesFor(&stubStore{}), stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestConfigUnavailable(t *testing.T) {
	req := withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/config", nil), "jdoe", false)
	resp := httptest.NewRecorder()
	FundraiserConfig(stubLoader{err: frconfig.ErrConfigUnavailable}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if decodeError(t, resp).Code != string(pkgerrors.CodeConfigUnavailable) {
		t.Fatalf("unexpected error code")
	}
}

type stubAllocator struct {
	amounts    allocation.Amounts
	releasedBy string
}

func (s *stubAllocator) Compute(_ context.Context, _ *frconfig.Config, amounts allocation.Amounts) (*allocation.Report, error) {
	s.amounts = amounts
	return &allocation.Report{Users: []allocation.UserReport{{UID: "jdoe", Name: "Jane Doe", AllocationTotal: decimal.RequireFromString("12.5")}}}, nil
}

func (s *stubAllocator) Release(ctx context.Context, cfg *frconfig.Config, amounts allocation.Amounts, releasedBy string) (*allocation.Report, error) {
	s.releasedBy = releasedBy
	return s.Compute(ctx, cfg, amounts)
}

func TestComputeAllocationCSV(t *testing.T) {
	svc := &stubAllocator{}
	body := `{"bankDeposited":"$1,000.00","mulchCost":"200","format":"csv"}`
	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/allocation", strings.NewReader(body)), "admin", true)
	resp := httptest.NewRecorder()
	ComputeAllocation(svc, stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !svc.amounts.BankDeposited.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected bank %s", svc.amounts.BankDeposited)
	}
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Uid,Name,") || !strings.HasSuffix(lines[1], ",12.50") {
		t.Fatalf("unexpected csv %q", resp.Body.String())
	}
}

func TestComputeAllocationRejectsBadAmounts(t *testing.T) {
	body := `{"bankDeposited":"lots","mulchCost":"200"}`
	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/allocation", strings.NewReader(body)), "admin", true)
	resp := httptest.NewRecorder()
	ComputeAllocation(&stubAllocator{}, stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	details, _ := decodeError(t, resp).Details.(map[string]any)
	if details["bankDeposited"] == nil {
		t.Fatalf("expected bankDeposited detail, got %v", details)
	}
}

func TestReleaseFundsRecordsCaller(t *testing.T) {
	svc := &stubAllocator{}
	body := `{"bankDeposited":"1000","mulchCost":"200"}`
	req := withCaller(httptest.NewRequest(http.MethodPost, "/api/v1/allocation/release", strings.NewReader(body)), "admin", true)
	resp := httptest.NewRecorder()
	ReleaseFunds(svc, stubLoader{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated || svc.releasedBy != "admin" {
		t.Fatalf("unexpected release %d %q", resp.Code, svc.releasedBy)
	}
}

type stubBoard struct{}

func (stubBoard) Get(context.Context) (*leaderboard.Board, error) {
	return &leaderboard.Board{Entries: []leaderboard.Entry{{UID: "a", BagsSold: 1}, {UID: "b", BagsSold: 5}}}, nil
}

func TestLeaderboardTop(t *testing.T) {
	req := withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard?top=1", nil), "jdoe", false)
	resp := httptest.NewRecorder()
	Leaderboard(stubBoard{}, nil).ServeHTTP(resp, req)

	var body struct {
		Data leaderboardResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Entries) != 1 || body.Data.Entries[0].UID != "b" || body.Data.Totals.BagsSold != 6 {
		t.Fatalf("unexpected board %+v", body.Data)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthReadyReportsRedis(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, failingPinger{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK || resp.Header().Get(envHeader) != "dev" {
		t.Fatalf("unexpected live response %d", resp.Code)
	}
}
