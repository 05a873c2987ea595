package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ety001/steem-account-watcher/internal/delegation"
	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/pagination"
	"github.com/ety001/steem-account-watcher/internal/rewards"
	"github.com/ety001/steem-account-watcher/internal/steem"
	"github.com/ety001/steem-account-watcher/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// AccountSource resolves raw chain account data.
type AccountSource interface {
	GetAccount(ctx context.Context, name string) (map[string]interface{}, error)
}

// RewardService computes pending and checkpointed reward totals.
type RewardService interface {
	PendingRewards(ctx context.Context, account string) (*rewards.Result, error)
	Compute(ctx context.Context, account, checkpointVal string) (*rewards.Result, error)
}

// DelegationService lists an account's delegations.
type DelegationService interface {
	ListDelegations(ctx context.Context, account string) (*delegation.Report, error)
}

// Handler handles API requests
type Handler struct {
	store       storage.OperationStore
	chain       AccountSource
	rewards     RewardService
	delegations DelegationService
	log         *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(store storage.OperationStore, chain AccountSource, rewardSvc RewardService, delegationSvc DelegationService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:       store,
		chain:       chain,
		rewards:     rewardSvc,
		delegations: delegationSvc,
		log:         log,
	}
}

// resolveAccount loads the chain account or writes the error response.
// It returns nil after responding when the account cannot be resolved.
func (h *Handler) resolveAccount(c *gin.Context) map[string]interface{} {
	name := c.Param("account")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account name is required"})
		return nil
	}

	profile, err := h.chain.GetAccount(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, steem.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such account"})
			return nil
		}
		h.log.Error("failed to resolve account", "account", name, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "chain source unavailable"})
		return nil
	}
	return profile
}

// GetAccount handles GET /api/v1/accounts/:account
func (h *Handler) GetAccount(c *gin.Context) {
	profile := h.resolveAccount(c)
	if profile == nil {
		return
	}
	name := c.Param("account")

	count, err := h.store.CountOperations(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.Account{
		Name:           name,
		Profile:        profile,
		OperationCount: count,
	})
}

// GetOperations handles GET /api/v1/accounts/:account/operations.
// Pages are 1-indexed on the wire; a page past the end yields an empty
// slice, not an error.
func (h *Handler) GetOperations(c *gin.Context) {
	account := c.Param("account")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	ctx := c.Request.Context()
	total, err := h.store.CountOperations(ctx, account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	window := pagination.New(page-1, pageSize, total)
	operations, err := h.store.ReadOperations(ctx, account, window.Offset(), int64(window.PageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.OperationPage{
		Operations: operations,
		Total:      total,
		Page:       window.Page + 1,
		PageSize:   window.PageSize,
		TotalPages: window.TotalPages(),
		HasMore:    window.HasMore(),
	})
}

// GetRewards handles GET /api/v1/accounts/:account/rewards
func (h *Handler) GetRewards(c *gin.Context) {
	if h.resolveAccount(c) == nil {
		return
	}
	account := c.Param("account")

	result, err := h.rewards.PendingRewards(c.Request.Context(), account)
	if err != nil {
		if errors.Is(err, rewards.ErrEstimatorUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "reward estimator unavailable, try again"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCurationRewards handles GET /api/v1/accounts/:account/curation_rewards
func (h *Handler) GetCurationRewards(c *gin.Context) {
	if h.resolveAccount(c) == nil {
		return
	}
	account := c.Param("account")
	checkpoint := c.Query("checkpoint")

	result, err := h.rewards.Compute(c.Request.Context(), account, checkpoint)
	if err != nil {
		if errors.Is(err, rewards.ErrEstimatorUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "reward estimator unavailable, try again"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDelegations handles GET /api/v1/accounts/:account/delegations
func (h *Handler) GetDelegations(c *gin.Context) {
	if h.resolveAccount(c) == nil {
		return
	}
	account := c.Param("account")

	report, err := h.delegations.ListDelegations(c.Request.Context(), account)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetAccounts handles GET /api/v1/accounts
func (h *Handler) GetAccounts(c *gin.Context) {
	accounts, err := h.store.TrackedAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// Health handles GET /api/v1/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
