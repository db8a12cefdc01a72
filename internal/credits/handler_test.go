package credits

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-market/marketplace/marketplace-backend/internal/auth"
	"carbon-market/marketplace/marketplace-backend/internal/ledger"
	"carbon-market/marketplace/marketplace-backend/internal/users"
)

const testSecret = "test-secret"

func newTestRouter(f *fixture) (*gin.Engine, *auth.TokenManager) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenManager(testSecret, time.Hour)

	r := gin.New()
	NewHandler(f.svc, zap.NewNop()).RegisterRoutes(r.Group("/api/NGO", auth.Authenticate(tokens)))
	return r, tokens
}

func tokenFor(t *testing.T, tokens *auth.TokenManager, username string, role users.Role) string {
	t.Helper()
	token, err := tokens.Issue(&users.User{Username: username, Role: role})
	require.NoError(t, err)
	return token
}

func send(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func creditBody(id, amount int64) map[string]any {
	return map[string]any{
		"creditId":   id,
		"name":       "Peatland rewetting",
		"amount":     amount,
		"price":      20,
		"secure_url": "https://docs.example.org/peat.pdf",
	}
}

func TestAuditRequirementEndpoint(t *testing.T) {
	f := newFixture(t, nil, 1, 2, 3)
	r, tokens := newTestRouter(f)
	token := tokenFor(t, tokens, "greenleaf", users.RoleNGO)

	w := send(r, http.MethodGet, "/api/NGO/audit-req?amount=400", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Enough auditors for the credit", body["message"])
	assert.EqualValues(t, 3, body["required_auditors"])

	w = send(r, http.MethodGet, "/api/NGO/audit-req?amount=600", nil, token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w)["message"], "600 tons")

	w = send(r, http.MethodGet, "/api/NGO/audit-req", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing 'amount' parameter", decode(t, w)["message"])

	w = send(r, http.MethodGet, "/api/NGO/audit-req?amount=lots", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditRequirementRequiresToken(t *testing.T) {
	f := newFixture(t, nil, 1, 2, 3)
	r, _ := newTestRouter(f)

	w := send(r, http.MethodGet, "/api/NGO/audit-req?amount=1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateCreditEndpoint(t *testing.T) {
	f := newFixture(t, nil, 1, 2, 3)
	f.repo.On("CreateWithRequest", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	r, tokens := newTestRouter(f)

	w := send(r, http.MethodPost, "/api/NGO/credits", creditBody(9, 400), tokenFor(t, tokens, "greenleaf", users.RoleNGO))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Credit created successfully", body["message"])
	credit := body["credit"].(map[string]any)
	assert.EqualValues(t, 9, credit["id"])
	assert.EqualValues(t, 1, credit["req_status"])
	assert.Len(t, credit["auditors"], 3)
}

func TestCreateCreditEndpointStatuses(t *testing.T) {
	tests := []struct {
		name     string
		username string
		role     users.Role
		body     any
		want     int
	}{
		{"buyer is refused", "greenleaf", users.RoleBuyer, creditBody(1, 10), http.StatusForbidden},
		{"unknown NGO", "ghost", users.RoleNGO, creditBody(1, 10), http.StatusNotFound},
		{"too few auditors", "greenleaf", users.RoleNGO, creditBody(1, 600), http.StatusServiceUnavailable},
		{"missing fields", "greenleaf", users.RoleNGO, map[string]any{"name": "x"}, http.StatusBadRequest},
		{"malformed json", "greenleaf", users.RoleNGO, "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, 1, 2, 3)
			r, tokens := newTestRouter(f)

			w := send(r, http.MethodPost, "/api/NGO/credits", tt.body, tokenFor(t, tokens, tt.username, tt.role))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			f.repo.AssertNotCalled(t, "CreateWithRequest", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateCreditEndpointStoreFailure(t *testing.T) {
	f := newFixture(t, nil, 1, 2, 3)
	f.repo.On("CreateWithRequest", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("deadlock detected"))
	r, tokens := newTestRouter(f)

	w := send(r, http.MethodPost, "/api/NGO/credits", creditBody(1, 10), tokenFor(t, tokens, "greenleaf", users.RoleNGO))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	msg := decode(t, w)["message"]
	assert.Equal(t, "Server error: failed to save credit", msg)
	assert.NotContains(t, msg, "deadlock")
}

func TestCreateCreditEndpointNamesMistypedField(t *testing.T) {
	f := newFixture(t, nil, 1, 2, 3)
	r, tokens := newTestRouter(f)
	body := creditBody(1, 10)
	body["amount"] = 12.5

	w := send(r, http.MethodPost, "/api/NGO/credits", body, tokenFor(t, tokens, "greenleaf", users.RoleNGO))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "'amount' must be an integer", decode(t, w)["message"])

	w = send(r, http.MethodPost, "/api/NGO/credits", body, tokenFor(t, tokens, "greenleaf", users.RoleBuyer))
	assert.Equal(t, http.StatusForbidden, w.Code)
	f.repo.AssertNotCalled(t, "CreateWithRequest", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateCreditEndpointIgnoresCacheOutage(t *testing.T) {
	f := newFixture(t, failingCache{}, 1, 2, 3)
	f.repo.On("CreateWithRequest", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	r, tokens := newTestRouter(f)

	w := send(r, http.MethodPost, "/api/NGO/credits", creditBody(1, 10), tokenFor(t, tokens, "greenleaf", users.RoleNGO))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestExpireCreditEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.On("GetCredit", mock.Anything, int64(7)).Return(&Credit{ID: 7, CreatorID: 10, IsActive: true}, nil)
	f.repo.On("GetPurchasedCredit", mock.Anything, int64(7)).Return(&PurchasedCredit{ID: 70, CreditID: 7}, nil)
	f.repo.On("Expire", mock.Anything, int64(7), int64(70)).Return(nil)
	f.repo.On("GetCredit", mock.Anything, int64(8)).Return(nil, nil)
	f.repo.On("GetCredit", mock.Anything, int64(9)).Return(&Credit{ID: 9, CreatorID: 10, IsActive: true}, nil)
	f.repo.On("GetPurchasedCredit", mock.Anything, int64(9)).Return(nil, nil)
	r, tokens := newTestRouter(f)
	token := tokenFor(t, tokens, "greenleaf", users.RoleNGO)

	w := send(r, http.MethodPatch, "/api/NGO/credits/expire/7", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Credit expired successfully", decode(t, w)["message"])

	w = send(r, http.MethodPatch, "/api/NGO/credits/expire/8", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodPatch, "/api/NGO/credits/expire/9", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPatch, "/api/NGO/credits/expire/abc", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPatch, "/api/NGO/credits/expire/7", nil, tokenFor(t, tokens, "greenleaf", users.RoleAuditor))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVerifyBeforeExpireEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	hash, err := users.HashPassword("s3cret")
	require.NoError(t, err)
	f.users.byName["greenleaf"].Password = hash
	r, tokens := newTestRouter(f)
	token := tokenFor(t, tokens, "greenleaf", users.RoleNGO)

	w := send(r, http.MethodPost, "/api/NGO/expire-req", map[string]string{"password": "s3cret"}, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodPost, "/api/NGO/expire-req", map[string]string{"password": "nope"}, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListEndpoints(t *testing.T) {
	f := newFixture(t, newMemoryCache(t))
	f.repo.On("ListByCreator", mock.Anything, int64(10)).Return([]Credit{{ID: 1, Name: "a"}}, nil)
	r, tokens := newTestRouter(f)
	token := tokenFor(t, tokens, "greenleaf", users.RoleNGO)

	w := send(r, http.MethodGet, "/api/NGO/credits", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var list []Credit
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	f.ledger.txns = []ledger.Transaction{{ID: 3, BuyerID: 4, CreditID: 1, Amount: 5}}
	w = send(r, http.MethodGet, "/api/NGO/transactions", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var txns []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txns))
	require.Len(t, txns, 1)
	assert.EqualValues(t, 4, txns[0]["buyer"])
}

func TestExportTransactionsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.txns = []ledger.Transaction{{ID: 1, BuyerID: 2, CreditID: 3, Amount: 4, TotalPrice: 5}}
	r, tokens := newTestRouter(f)
	token := tokenFor(t, tokens, "greenleaf", users.RoleNGO)

	w := send(r, http.MethodGet, "/api/NGO/transactions/export?format=csv", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "transactions.csv")
	assert.Contains(t, w.Body.String(), "1,2,3,4,5.00")

	w = send(r, http.MethodGet, "/api/NGO/transactions/export?format=docx", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodGet, "/api/NGO/transactions/export?format=pdf", nil, tokenFor(t, tokens, "b", users.RoleBuyer))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
