package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wrprafra/newsletter-project/internal/ai"
	"github.com/wrprafra/newsletter-project/internal/api/middleware"
	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/repository"
	"github.com/wrprafra/newsletter-project/internal/service"
)

// FeedHandler handles the paginated feed and per-item mutations.
type FeedHandler struct {
	feed      *service.FeedService
	repo      *repository.NewsletterRepository
	overrides *repository.OverrideRepository
}

// NewFeedHandler creates a new feed handler.
// Parameters:
//   - feed: feed read service.
//   - repo: newsletter repository for mutations.
//   - overrides: domain type override repository.
// Returns:
//   - *FeedHandler: initialized handler.
func NewFeedHandler(feed *service.FeedService, repo *repository.NewsletterRepository, overrides *repository.OverrideRepository) *FeedHandler {
	return &FeedHandler{
		feed:      feed,
		repo:      repo,
		overrides: overrides,
	}
}

// GetFeed handles GET /api/feed.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) GetFeed(c *gin.Context) {
	userID := middleware.UserID(c)
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	before := c.Query("before")
	favoritesOnly := c.Query("favorites") == "true"

	page, err := h.feed.GetPage(c.Request.Context(), userID, pageSize, before, favoritesOnly)
	if err != nil {
		if errors.Is(err, service.ErrBadCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed cursor"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("feed page failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read feed"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetItem handles GET /api/feed/item/:email_id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) GetItem(c *gin.Context) {
	userID := middleware.UserID(c)
	emailID := c.Param("email_id")

	item, err := h.feed.GetItem(c.Request.Context(), emailID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("item lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read item"})
		return
	}
	c.JSON(http.StatusOK, item)
}

type favoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}

// SetFavorite handles POST /api/feed/:email_id/favorite.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) SetFavorite(c *gin.Context) {
	userID := middleware.UserID(c)
	emailID := c.Param("email_id")

	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if _, err := h.repo.GetByID(c.Request.Context(), emailID, userID); err != nil {
		if repository.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("item lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}
	if err := h.repo.SetFavorite(c.Request.Context(), emailID, userID, req.IsFavorite); err != nil {
		middleware.GetLogger(c).WithError(err).Error("favorite update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email_id": emailID, "is_favorite": req.IsFavorite})
}

type tagRequest struct {
	Tag string `json:"tag"`
}

// SetTag handles PUT /api/feed/:email_id/tag.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) SetTag(c *gin.Context) {
	userID := middleware.UserID(c)
	emailID := c.Param("email_id")

	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	tag := strings.TrimSpace(req.Tag)
	if len(tag) > 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag too long"})
		return
	}

	if _, err := h.repo.GetByID(c.Request.Context(), emailID, userID); err != nil {
		if repository.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("item lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}
	if err := h.repo.SetTag(c.Request.Context(), emailID, userID, tag); err != nil {
		middleware.GetLogger(c).WithError(err).Error("tag update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email_id": emailID, "tag": tag})
}

type typeRequest struct {
	TypeTag string `json:"type_tag"`
}

// SetType handles POST /api/feed/:email_id/type. The new type is saved
// as a per-domain override and propagated to every existing record from
// the same sender domain, so future emails classify the same way.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) SetType(c *gin.Context) {
	userID := middleware.UserID(c)
	emailID := c.Param("email_id")

	var req typeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	typeTag := strings.ToLower(strings.TrimSpace(req.TypeTag))
	if typeTag == "" || ai.CoerceType(typeTag) != typeTag {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown type tag"})
		return
	}

	rec, err := h.repo.GetByID(c.Request.Context(), emailID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("item lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}

	updated := int64(0)
	if rec.SourceDomain != "" {
		override := &domain.DomainTypeOverride{
			UserID:  userID,
			Domain:  rec.SourceDomain,
			TypeTag: typeTag,
		}
		if err := h.overrides.Upsert(c.Request.Context(), override); err != nil {
			middleware.GetLogger(c).WithError(err).Error("override upsert failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save override"})
			return
		}
		updated, err = h.repo.PropagateTypeByDomain(c.Request.Context(), userID, rec.SourceDomain, typeTag)
		if err != nil {
			middleware.GetLogger(c).WithError(err).Error("type propagation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to propagate type"})
			return
		}
	} else {
		if err := h.repo.SetTypeTag(c.Request.Context(), emailID, userID, typeTag); err != nil {
			middleware.GetLogger(c).WithError(err).Error("type update failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
			return
		}
		updated = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"email_id": emailID,
		"type_tag": typeTag,
		"domain":   rec.SourceDomain,
		"updated":  updated,
	})
}

// GetStats handles GET /api/feed/stats.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *FeedHandler) GetStats(c *gin.Context) {
	userID := middleware.UserID(c)
	stats, err := h.repo.Stats(c.Request.Context(), userID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("stats query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
