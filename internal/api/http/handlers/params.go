package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// idParam parses a positive integer path parameter.
func idParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewBadRequest("invalid " + name)
	}
	return id, nil
}

// pagination reads page and page_size query values.
func pagination(c *fiber.Ctx) (limit, offset, page int, err error) {
	page = c.QueryInt("page", 1)
	size := c.QueryInt("page_size", defaultPageSize)
	if page < 1 {
		return 0, 0, 0, apperrors.NewFieldError("page", "must be at least 1")
	}
	if size < 1 || size > maxPageSize {
		return 0, 0, 0, apperrors.NewFieldError("page_size", "must be between 1 and 100")
	}
	return size, (page - 1) * size, page, nil
}

func invalidPayload() error {
	return apperrors.NewBadRequest("invalid payload")
}
