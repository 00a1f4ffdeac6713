package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/validator"
)

// DefaultPageSize is used when neither the request nor the config sets one.
const DefaultPageSize = 20

// Config bounds what a builder accepts. Zero limits are unlimited.
type Config struct {
	MaxPageSize     int32
	DefaultPageSize int32
	// PrimaryOrderingTerm is appended to every ordering that lacks it. It
	// should name a unique field so pages never overlap.
	PrimaryOrderingTerm *ordering.Term
	MaxFilterLength     int
	MaxOrderingLength   int
	MaxQueryLength      int
	MaxDepth            int
	// PageTokenTTL rejects tokens older than this when positive.
	PageTokenTTL time.Duration
}

func (c Config) normalize() (Config, error) {
	if c.MaxPageSize < 0 {
		return c, fmt.Errorf("max page size %d is negative", c.MaxPageSize)
	}
	if c.DefaultPageSize < 0 {
		return c, fmt.Errorf("default page size %d is negative", c.DefaultPageSize)
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = DefaultPageSize
		if c.MaxPageSize > 0 && c.MaxPageSize < c.DefaultPageSize {
			c.DefaultPageSize = c.MaxPageSize
		}
	}
	if c.MaxPageSize > 0 && c.DefaultPageSize > c.MaxPageSize {
		return c, fmt.Errorf("default page size %d exceeds max page size %d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.MaxFilterLength < 0 || c.MaxOrderingLength < 0 || c.MaxQueryLength < 0 || c.MaxDepth < 0 {
		return c, errors.New("limits must not be negative")
	}
	return c, nil
}

func (c Config) limits() validator.Limits {
	return validator.Limits{
		MaxFilterLength:   c.MaxFilterLength,
		MaxOrderingLength: c.MaxOrderingLength,
		MaxDepth:          c.MaxDepth,
	}
}

// pageSize applies the page size rules: zero selects the default, larger
// than max clamps to max, negative fails.
func (c Config) pageSize(requested int32) (uint32, error) {
	if requested < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidPageSize, requested)
	}
	if requested == 0 {
		requested = c.DefaultPageSize
	}
	if c.MaxPageSize > 0 && requested > c.MaxPageSize {
		requested = c.MaxPageSize
	}
	return uint32(requested), nil
}
