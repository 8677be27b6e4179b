package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateTestCache invalidates all caches derived from a test definition
func InvalidateTestCache(ctx context.Context, cm *CacheManager, testID uint) {
	SafeDelete(ctx, cm.Test,
		fmt.Sprintf("id:%d", testID),
		fmt.Sprintf("details:%d", testID))

	SafeInvalidatePattern(ctx, cm.Test, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("test:%d:*", testID))
}

// InvalidateAttemptCache invalidates the fast-path reads for an attempt after
// any write to it
func InvalidateAttemptCache(ctx context.Context, cm *CacheManager, attemptID uint, memberID string, testID uint) {
	SafeDelete(ctx, cm.Attempt,
		fmt.Sprintf("id:%d", attemptID),
		fmt.Sprintf("details:%d", attemptID))

	SafeDelete(ctx, cm.Fast,
		fmt.Sprintf("current:%s:%d", memberID, testID),
		fmt.Sprintf("count:%s:%d", memberID, testID))

	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("test:%d:*", testID))
}
