package cache

import (
	"context"
	"log/slog"

	"reviewdesk/internal/middleware"
)

const (
	applicantStatusPrefix = "application:status:"

	// StatsKey holds the reviewer dashboard counts.
	StatsKey = "application:stats"
)

// ApplicantStatusKey is the cache key for one applicant's status view.
func ApplicantStatusKey(applicantID string) string {
	return applicantStatusPrefix + applicantID
}

// Invalidate drops keys; failures are logged and otherwise ignored.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// InvalidateApplication drops every cached view touched by a change to an
// applicant's application.
func InvalidateApplication(ctx context.Context, applicantID string) {
	Invalidate(ctx, ApplicantStatusKey(applicantID), StatsKey)
}
