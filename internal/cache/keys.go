package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RateLimitKey(credentialID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:credential:%s", credentialID)
}
