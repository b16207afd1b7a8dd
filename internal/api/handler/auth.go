package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type guestRequest struct {
	Name string `json:"name"`
}

// IssueGuest створює гостьову ідентичність та повертає JWT
func (h *Handler) IssueGuest(c *gin.Context) {
	var req guestRequest
	// Тіло необов'язкове.
	_ = c.ShouldBindJSON(&req)

	token, user, err := h.Auth.IssueGuest(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
