package service

import (
	"context"
	"strings"
	"time"

	"reviewdesk/internal/cache"
	"reviewdesk/internal/featureflags"
	"reviewdesk/internal/models"
	"reviewdesk/internal/observability"
	"reviewdesk/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// SortSubmittedAsc lists the oldest submissions first.
	SortSubmittedAsc = "submitted_at_asc"
	// SortSubmittedDesc is the default listing order.
	SortSubmittedDesc = "submitted_at_desc"
)

// ApplicantStatus is the applicant's view of their own application. It
// carries no audit internals.
type ApplicantStatus struct {
	ApplicationID    string                   `json:"application_id"`
	Status           models.ApplicationStatus `json:"status"`
	Completeness     int                      `json:"completeness"`
	MissingDocuments []string                 `json:"missing_documents"`
	SubmittedAt      time.Time                `json:"submitted_at"`
	ReviewedAt       *time.Time               `json:"reviewed_at,omitempty"`
	ReviewFeedback   *string                  `json:"review_feedback,omitempty"`
	RejectionReason  *string                  `json:"rejection_reason,omitempty"`
	ReviewCycle      int                      `json:"review_cycle"`
}

// ApplicationSummary is one row of the reviewer listing.
type ApplicationSummary struct {
	ID           string                   `json:"id"`
	ApplicantID  string                   `json:"applicant_id"`
	Status       models.ApplicationStatus `json:"status"`
	Completeness int                      `json:"completeness"`
	SubmittedAt  time.Time                `json:"submitted_at"`
	ReviewedAt   *time.Time               `json:"reviewed_at,omitempty"`
}

// ListQuery selects a page of the reviewer listing.
type ListQuery struct {
	Status   string
	Sort     string
	Page     int
	PageSize int
}

// Page is a slice of the reviewer listing.
type Page struct {
	Items    []ApplicationSummary `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ApplicationDetail is the full reviewer view of an application.
type ApplicationDetail struct {
	Application  *models.Application `json:"application"`
	Completeness int                 `json:"completeness"`
	Missing      []string            `json:"missing_documents"`
	AuditHistory []models.AuditEntry `json:"audit_history"`
}

// StatusService answers read-only status queries.
type StatusService struct {
	apps     repository.ApplicationRepository
	audits   repository.AuditRepository
	flags    *featureflags.Manager
	cacheTTL time.Duration
}

// NewStatusService returns a new StatusService.
func NewStatusService(
	apps repository.ApplicationRepository,
	audits repository.AuditRepository,
	flags *featureflags.Manager,
	cacheTTL time.Duration,
) *StatusService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &StatusService{apps: apps, audits: audits, flags: flags, cacheTTL: cacheTTL}
}

// GetForApplicant returns the caller's latest application.
func (s *StatusService) GetForApplicant(ctx context.Context, applicantID string) (_ *ApplicantStatus, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "StatusService", "GetForApplicant")
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(applicantID) == "" {
		return nil, models.NewValidationError("applicant id is required")
	}

	useCache := s.flags.Enabled(featureflags.ApplicantStatusCache, applicantID)
	key := cache.ApplicantStatusKey(applicantID)
	if useCache {
		var cached ApplicantStatus
		if found, _ := cache.GetJSON(ctx, key, &cached); found {
			observability.StatusCacheLookups.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		observability.StatusCacheLookups.WithLabelValues("miss").Inc()
	}

	app, err := s.apps.GetLatestForApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	view := applicantView(app)

	if useCache {
		_ = cache.SetJSON(ctx, key, view, s.cacheTTL)
	}
	return view, nil
}

func applicantView(app *models.Application) *ApplicantStatus {
	return &ApplicantStatus{
		ApplicationID:    app.ID,
		Status:           app.Status,
		Completeness:     models.ComputeCompleteness(app),
		MissingDocuments: models.MissingSignals(app),
		SubmittedAt:      app.SubmittedAt,
		ReviewedAt:       app.ReviewedAt,
		ReviewFeedback:   app.ReviewFeedback,
		RejectionReason:  app.RejectionReason,
		ReviewCycle:      app.ReviewCycle,
	}
}

// ListForReviewers returns one page of non-purged applications.
func (s *StatusService) ListForReviewers(ctx context.Context, q ListQuery) (_ *Page, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "StatusService", "ListForReviewers")
	defer func() { observability.EndSpan(span, err) }()

	filter := repository.ListFilter{}
	if raw := strings.TrimSpace(q.Status); raw != "" {
		st, ok := models.ParseStatus(strings.ToLower(raw))
		if !ok {
			return nil, models.NewValidationError("unknown status filter " + raw)
		}
		filter.Status = &st
	}
	switch strings.ToLower(strings.TrimSpace(q.Sort)) {
	case "", SortSubmittedDesc:
	case SortSubmittedAsc:
		filter.SortAscending = true
	default:
		return nil, models.NewValidationError("unknown sort " + q.Sort)
	}

	page, pageSize := normalizePage(q.Page, q.PageSize)
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	apps, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]ApplicationSummary, 0, len(apps))
	for i := range apps {
		a := &apps[i]
		items = append(items, ApplicationSummary{
			ID:           a.ID,
			ApplicantID:  a.ApplicantID,
			Status:       a.Status,
			Completeness: models.ComputeCompleteness(a),
			SubmittedAt:  a.SubmittedAt,
			ReviewedAt:   a.ReviewedAt,
		})
	}
	return &Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// GetDetailForReviewer returns the application with its audit history. A
// caller without the review capability is refused rather than shown nothing.
func (s *StatusService) GetDetailForReviewer(ctx context.Context, canReview bool, id string) (_ *ApplicationDetail, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "StatusService", "GetDetailForReviewer")
	defer func() { observability.EndSpan(span, err) }()

	if !canReview {
		return nil, models.NewUnauthorizedError("reviewer capability required")
	}

	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.audits.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	return &ApplicationDetail{
		Application:  app,
		Completeness: models.ComputeCompleteness(app),
		Missing:      models.MissingSignals(app),
		AuditHistory: history,
	}, nil
}

// StatusCounts returns how many non-purged applications sit in each status.
func (s *StatusService) StatusCounts(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	var counts map[models.ApplicationStatus]int64
	err := cache.CacheAside(ctx, cache.StatsKey, &counts, s.cacheTTL, func() error {
		var err error
		counts, err = s.apps.CountByStatus(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
