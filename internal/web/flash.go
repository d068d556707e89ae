package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const flashCookie = "faceattend_flash"

// Flash is a one-shot banner shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

func setFlash(c *gin.Context, category, message string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, category+"|"+message, 60, "/", "", secure, true)
}

// popFlash reads and clears the pending flash, if any.
func popFlash(c *gin.Context) *Flash {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	category, message, ok := strings.Cut(raw, "|")
	if !ok {
		return nil
	}
	return &Flash{Category: category, Message: message}
}
