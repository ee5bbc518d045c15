package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wrprafra/newsletter-project/internal/api/middleware"
	"github.com/wrprafra/newsletter-project/internal/settings"
)

// SettingsHandler handles per-user feed preferences.
type SettingsHandler struct {
	store *settings.Store
}

// NewSettingsHandler creates a new settings handler.
// Parameters:
//   - store: file-backed settings store.
// Returns:
//   - *SettingsHandler: initialized handler.
func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Get handles GET /api/settings.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SettingsHandler) Get(c *gin.Context) {
	userID := middleware.UserID(c)
	userSettings, err := h.store.Get(userID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("settings read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read settings"})
		return
	}
	c.JSON(http.StatusOK, userSettings)
}

// Put handles PUT /api/settings. Hidden domains are lowercased and
// deduplicated before saving.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SettingsHandler) Put(c *gin.Context) {
	userID := middleware.UserID(c)

	var req settings.UserSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	seen := make(map[string]bool, len(req.HiddenDomains))
	cleaned := make([]string, 0, len(req.HiddenDomains))
	for _, d := range req.HiddenDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		cleaned = append(cleaned, d)
	}
	req.HiddenDomains = cleaned

	if err := h.store.Put(userID, req); err != nil {
		middleware.GetLogger(c).WithError(err).Error("settings write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, req)
}
