package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ety001/steem-account-watcher/internal/delegation"
	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/rewards"
	"github.com/ety001/steem-account-watcher/internal/steem"
	"github.com/ety001/steem-account-watcher/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAccountSource struct {
	accounts map[string]map[string]interface{}
}

func (f *fakeAccountSource) GetAccount(ctx context.Context, name string) (map[string]interface{}, error) {
	account, ok := f.accounts[name]
	if !ok {
		return nil, steem.ErrAccountNotFound
	}
	return account, nil
}

type fakeRewardService struct {
	result *rewards.Result
	err    error
}

func (f *fakeRewardService) PendingRewards(ctx context.Context, account string) (*rewards.Result, error) {
	return f.result, f.err
}

func (f *fakeRewardService) Compute(ctx context.Context, account, checkpointVal string) (*rewards.Result, error) {
	return f.result, f.err
}

type fakeDelegationService struct {
	report *delegation.Report
	err    error
}

func (f *fakeDelegationService) ListDelegations(ctx context.Context, account string) (*delegation.Report, error) {
	return f.report, f.err
}

func seededStore(t *testing.T, account string, n int) *storage.Memory {
	t.Helper()
	store := storage.NewMemory()
	for i := 0; i < n; i++ {
		_, err := store.AppendOperation(context.Background(), &models.AccountOperation{
			Account:   account,
			BlockNum:  int64(1000 + i),
			TrxID:     fmt.Sprintf("trx-%d", i),
			OpInTrx:   0,
			OpType:    "vote",
			OpData:    map[string]interface{}{"voter": account},
			Timestamp: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	return store
}

func testRouter(store *storage.Memory, chain AccountSource) *gin.Engine {
	handler := NewHandler(store, chain,
		&fakeRewardService{result: &rewards.Result{TotalSP: 0.75, TotalSBD: 0.5, TotalAuthor: 1.23}},
		&fakeDelegationService{report: &delegation.Report{Outgoing: []delegation.Outgoing{}, Expiring: []delegation.Expiring{}}},
		nil)
	return SetupRoutes(handler)
}

func doRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetOperationsSecondPage(t *testing.T) {
	store := seededStore(t, "alice", 30)
	router := testRouter(store, &fakeAccountSource{})

	w := doRequest(router, "/api/v1/accounts/alice/operations?page=2&page_size=25")
	require.Equal(t, http.StatusOK, w.Code)

	var page models.OperationPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))

	assert.Equal(t, int64(30), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.HasMore)
	require.Len(t, page.Operations, 5)
	assert.Equal(t, int64(25), page.Operations[0].Sequence)
	assert.Equal(t, int64(29), page.Operations[4].Sequence)
}

func TestGetOperationsPagePastEndIsEmpty(t *testing.T) {
	store := seededStore(t, "alice", 10)
	router := testRouter(store, &fakeAccountSource{})

	w := doRequest(router, "/api/v1/accounts/alice/operations?page=1000&page_size=25")
	require.Equal(t, http.StatusOK, w.Code)

	var page models.OperationPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Empty(t, page.Operations)
	assert.Equal(t, int64(10), page.Total)
}

func TestGetOperationsDefaultsAndClamping(t *testing.T) {
	store := seededStore(t, "alice", 3)
	router := testRouter(store, &fakeAccountSource{})

	// Garbage page falls back to the first page; oversized page_size is reset.
	w := doRequest(router, "/api/v1/accounts/alice/operations?page=nope&page_size=99999")
	require.Equal(t, http.StatusOK, w.Code)

	var page models.OperationPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Operations, 3)
	assert.Equal(t, int64(0), page.Operations[0].Sequence)
}

func TestGetAccountNotFound(t *testing.T) {
	router := testRouter(storage.NewMemory(), &fakeAccountSource{})

	w := doRequest(router, "/api/v1/accounts/ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAccountWithOperationCount(t *testing.T) {
	store := seededStore(t, "alice", 7)
	chain := &fakeAccountSource{accounts: map[string]map[string]interface{}{
		"alice": {"name": "alice", "reputation": "12345"},
	}}
	router := testRouter(store, chain)

	w := doRequest(router, "/api/v1/accounts/alice")
	require.Equal(t, http.StatusOK, w.Code)

	var account models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	assert.Equal(t, "alice", account.Name)
	assert.Equal(t, int64(7), account.OperationCount)
	assert.Equal(t, "12345", account.Profile["reputation"])
}

func TestGetRewards(t *testing.T) {
	chain := &fakeAccountSource{accounts: map[string]map[string]interface{}{
		"alice": {"name": "alice"},
	}}
	router := testRouter(storage.NewMemory(), chain)

	w := doRequest(router, "/api/v1/accounts/alice/rewards")
	require.Equal(t, http.StatusOK, w.Code)

	var result rewards.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1.23, result.TotalAuthor)
}

func TestGetRewardsEstimatorDown(t *testing.T) {
	chain := &fakeAccountSource{accounts: map[string]map[string]interface{}{
		"alice": {"name": "alice"},
	}}
	handler := NewHandler(storage.NewMemory(), chain,
		&fakeRewardService{err: fmt.Errorf("calling out: %w", rewards.ErrEstimatorUnavailable)},
		&fakeDelegationService{}, nil)
	router := SetupRoutes(handler)

	w := doRequest(router, "/api/v1/accounts/alice/rewards")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetDelegations(t *testing.T) {
	chain := &fakeAccountSource{accounts: map[string]map[string]interface{}{
		"alice": {"name": "alice"},
	}}
	router := testRouter(storage.NewMemory(), chain)

	w := doRequest(router, "/api/v1/accounts/alice/delegations")
	require.Equal(t, http.StatusOK, w.Code)

	var report delegation.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Empty(t, report.Outgoing)
}

func TestGetTrackedAccounts(t *testing.T) {
	store := seededStore(t, "alice", 1)
	router := testRouter(store, &fakeAccountSource{})

	w := doRequest(router, "/api/v1/accounts")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Accounts []string `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"alice"}, body.Accounts)
}

func TestHealth(t *testing.T) {
	router := testRouter(storage.NewMemory(), &fakeAccountSource{})
	w := doRequest(router, "/api/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
}
