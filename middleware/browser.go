package middleware

import (
	"time"

	"bulkmail/auth"
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Cookie names identifying a browser
const (
	DeviceCookie = "bm_device"
	TabCookie    = "bm_tab"
)

const browserKey = "browser"

// Browser is the per-request view of one browser's stores
type Browser struct {
	DeviceID string
	TabID    string
	Session  *auth.SessionStore
	Access   *auth.AccessStore
	Intents  *auth.IntentStore
}

// BrowserConfig configures BrowserIdentity
type BrowserConfig struct {
	Signer   *auth.DeviceSigner
	Registry *auth.Registry
	Secure   bool
}

// BrowserIdentity resolves (or issues) the device and tab cookies and puts
// the browser's stores in Locals
func BrowserIdentity(cfg BrowserConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deviceID, err := cfg.Signer.Parse(c.Cookies(DeviceCookie))
		if err != nil {
			var token string
			deviceID, token, err = cfg.Signer.NewDevice(time.Now())
			if err != nil {
				return utils.InternalServerError("Failed to identify browser", err)
			}
			c.Cookie(&fiber.Cookie{
				Name:     DeviceCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   int(cfg.Signer.MaxAge().Seconds()),
				HTTPOnly: true,
				Secure:   cfg.Secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
			utils.Log.Debug("Issued device %s", deviceID)
		}

		tabID := c.Cookies(TabCookie)
		if _, err := uuid.Parse(tabID); err != nil {
			tabID = uuid.New().String()
			// no MaxAge: dropped by the browser when the session ends
			c.Cookie(&fiber.Cookie{
				Name:        TabCookie,
				Value:       tabID,
				Path:        "/",
				HTTPOnly:    true,
				Secure:      cfg.Secure,
				SameSite:    fiber.CookieSameSiteLaxMode,
				SessionOnly: true,
			})
		}

		c.Locals(browserKey, &Browser{
			DeviceID: deviceID,
			TabID:    tabID,
			Session:  cfg.Registry.Session(deviceID),
			Access:   cfg.Registry.Access(tabID),
			Intents:  cfg.Registry.Intents(tabID),
		})

		return c.Next()
	}
}

// CurrentBrowser returns the browser resolved by BrowserIdentity
func CurrentBrowser(c *fiber.Ctx) *Browser {
	b, _ := c.Locals(browserKey).(*Browser)
	return b
}
