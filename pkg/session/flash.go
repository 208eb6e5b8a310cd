package session

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	FlashCookie = "itdesk_flash"
	flashKey    = "session.flashes"
)

// Flash categories understood by the templates.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "danger"
)

type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// AddFlash queues a message for the next rendered page, which may be the
// current response or the target of a redirect.
func AddFlash(c *gin.Context, category, message string) {
	list := append(pendingFlashes(c), Flash{Category: category, Message: message})
	c.Set(flashKey, list)
	writeFlashCookie(c, list)
}

// PopFlashes returns and clears every queued message.
func PopFlashes(c *gin.Context) []Flash {
	list := pendingFlashes(c)
	c.Set(flashKey, []Flash{})
	if len(list) > 0 {
		writeFlashCookie(c, nil)
	}
	return list
}

func pendingFlashes(c *gin.Context) []Flash {
	if v, ok := c.Get(flashKey); ok {
		if list, ok := v.([]Flash); ok {
			return list
		}
	}

	var list []Flash
	if raw, err := c.Cookie(FlashCookie); err == nil && raw != "" {
		if data, err := base64.RawURLEncoding.DecodeString(raw); err == nil {
			_ = json.Unmarshal(data, &list)
		}
	}
	c.Set(flashKey, list)
	return list
}

func writeFlashCookie(c *gin.Context, list []Flash) {
	c.SetSameSite(http.SameSiteLaxMode)
	if len(list) == 0 {
		c.SetCookie(FlashCookie, "", -1, "/", "", false, true)
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	c.SetCookie(FlashCookie, base64.RawURLEncoding.EncodeToString(data), 300, "/", "", false, true)
}
