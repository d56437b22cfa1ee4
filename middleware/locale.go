package middleware

import (
	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"
)

var localeMatcher = language.NewMatcher([]language.Tag{language.English, language.Japanese})

// LocaleMiddleware detects and sets the user's locale
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := DetectLanguage(c.Query("lang"), c.Cookies("lang"), c.Get(fiber.HeaderAcceptLanguage))

		if c.Query("lang") == lang {
			c.Cookie(&fiber.Cookie{
				Name:     "lang",
				Value:    lang,
				Path:     "/",
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		c.Locals("localizer", utils.GetLocalizer(lang))
		c.Locals("lang", lang)

		utils.Log.Debug("Locale detected: %s for path: %s", lang, c.Path())

		return c.Next()
	}
}

// DetectLanguage picks a supported language from, in order, an explicit
// query value, the lang cookie and the Accept-Language header
func DetectLanguage(query, cookie, acceptLanguage string) string {
	for _, candidate := range []string{query, cookie} {
		if supported(candidate) {
			return candidate
		}
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "en"
	}
	_, index, _ := localeMatcher.Match(tags...)
	return utils.SupportedLanguages[index]
}

func supported(lang string) bool {
	for _, l := range utils.SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
