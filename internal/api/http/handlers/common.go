package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/balu-property/damage-service/internal/api/dto"
	"github.com/balu-property/damage-service/internal/auth"
	"github.com/balu-property/damage-service/internal/domain"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func localeFrom(c *fiber.Ctx) domain.Locale {
	raw := c.Query("locale")
	if raw == "" {
		raw = strings.SplitN(c.Get(fiber.HeaderAcceptLanguage), ",", 2)[0]
	}
	return domain.ParseLocale(raw)
}

func parseStatuses(raw string) ([]domain.Status, error) {
	if raw == "" {
		return nil, nil
	}
	var out []domain.Status
	for _, part := range strings.Split(raw, ",") {
		s, err := domain.ParseStatus(strings.TrimSpace(part))
		if err != nil {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
		}
		out = append(out, s)
	}
	return out, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
