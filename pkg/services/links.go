package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/cache"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/repositories"
)

// DefaultStaleAfter is the freshness window after which an active link needs re-verification.
const DefaultStaleAfter = 90 * 24 * time.Hour

// LinkService manages canonical links and their attachments to systems,
// actions, roles and tasks.
type LinkService interface {
	Create(ctx context.Context, in models.CreateLinkInput) (*models.Link, error)
	// Get returns the link whatever its status.
	Get(ctx context.Context, id uuid.UUID) (*models.Link, error)
	// Update applies a partial update, including manual status transitions.
	Update(ctx context.Context, id uuid.UUID, in models.UpdateLinkInput) (*models.Link, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter models.LinkFilter, opts models.ListOptions) (*models.Page[*models.Link], error)

	// Attach creates an attachment or updates the order and note of an existing one.
	Attach(ctx context.Context, in models.AttachLinkInput) (*models.LinkAttachment, error)
	Detach(ctx context.Context, kind models.LinkParentKind, parentID, linkID uuid.UUID) error
	Reorder(ctx context.Context, in models.ReorderLinkInput) (*models.LinkAttachment, error)
	// LinksFor returns only active links, by attachment order then newest first.
	LinksFor(ctx context.Context, kind models.LinkParentKind, parentID uuid.UUID) ([]*models.AttachedLink, error)

	// BulkAttach attaches every input in one transaction; any failure attaches none.
	BulkAttach(ctx context.Context, in []models.AttachLinkInput) ([]*models.LinkAttachment, error)
	// ReorderAll reorders every input in one transaction; any failure reorders none.
	ReorderAll(ctx context.Context, in []models.ReorderLinkInput) ([]*models.LinkAttachment, error)

	// Verify stamps the link as checked now without changing its status.
	Verify(ctx context.Context, id uuid.UUID) (*models.Link, error)
	// UsageStats counts attachments per kind for one link, or every link when linkID is nil.
	UsageStats(ctx context.Context, linkID *uuid.UUID) ([]*models.LinkUsage, error)
	Orphaned(ctx context.Context) ([]*models.Link, error)
	NeedingVerification(ctx context.Context) ([]*models.Link, error)
}

type linkService struct {
	repo       repositories.LinkRepository
	usage      cache.UsageCache
	withTx     TxFunc
	now        Clock
	staleAfter time.Duration
	logger     *zap.Logger
}

// LinkServiceOption customizes a LinkService.
type LinkServiceOption func(*linkService)

// WithClock overrides the time source used for verification and staleness.
func WithClock(now Clock) LinkServiceOption {
	return func(s *linkService) { s.now = now }
}

// WithStaleAfter overrides the freshness window.
func WithStaleAfter(d time.Duration) LinkServiceOption {
	return func(s *linkService) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// NewLinkService creates a new LinkService. usage may be nil.
func NewLinkService(repo repositories.LinkRepository, usage cache.UsageCache, withTx TxFunc, logger *zap.Logger, opts ...LinkServiceOption) LinkService {
	if usage == nil {
		usage = cache.NoopUsageCache{}
	}
	s := &linkService{
		repo:       repo,
		usage:      usage,
		withTx:     withTx,
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
		logger:     logger.Named("link-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ LinkService = (*linkService)(nil)

// ============================================================================
// CRUD Operations
// ============================================================================

func (s *linkService) Create(ctx context.Context, in models.CreateLinkInput) (*models.Link, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	if in.LinkType == "" {
		in.LinkType = models.LinkTypeOther
	}
	if in.AuthRequired == "" {
		in.AuthRequired = models.AuthNone
	}
	if in.Status == "" {
		in.Status = models.LinkStatusActive
	}

	link, err := s.repo.Create(ctx, in, optionalSubject(ctx))
	if err != nil {
		s.logger.Error("Failed to create link", zap.String("url", in.URL), zap.Error(err))
		return nil, err
	}

	s.usage.Invalidate(ctx)
	s.logger.Info("Created link",
		zap.String("link_id", link.ID.String()),
		zap.String("url", link.URL))
	return link, nil
}

func (s *linkService) Get(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *linkService) Update(ctx context.Context, id uuid.UUID, in models.UpdateLinkInput) (*models.Link, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	link, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		s.logger.Info("Changed link status",
			zap.String("link_id", id.String()),
			zap.String("status", string(link.Status)))
	}
	s.usage.Invalidate(ctx)
	return link, nil
}

// Delete removes the link and every attachment of it.
func (s *linkService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.usage.Invalidate(ctx)
	s.logger.Info("Deleted link", zap.String("link_id", id.String()))
	return nil
}

func (s *linkService) List(ctx context.Context, filter models.LinkFilter, opts models.ListOptions) (*models.Page[*models.Link], error) {
	if err := models.Validate(filter); err != nil {
		return nil, err
	}
	links, total, err := s.repo.List(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(links, total, opts.Bounded()), nil
}

// ============================================================================
// Attachments
// ============================================================================

func (s *linkService) Attach(ctx context.Context, in models.AttachLinkInput) (*models.LinkAttachment, error) {
	att, err := s.attach(ctx, in)
	if err != nil {
		return nil, err
	}
	s.usage.Invalidate(ctx)
	return att, nil
}

// attach checks both ends before upserting so NotFound names which one is missing.
func (s *linkService) attach(ctx context.Context, in models.AttachLinkInput) (*models.LinkAttachment, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	exists, err := s.repo.ParentExists(ctx, in.ParentKind, in.ParentID)
	if err := requireFound(exists, err, string(in.ParentKind), in.ParentID); err != nil {
		return nil, err
	}
	exists, err = s.repo.Exists(ctx, in.LinkID)
	if err := requireFound(exists, err, "link", in.LinkID); err != nil {
		return nil, err
	}
	return s.repo.Attach(ctx, in)
}

func (s *linkService) Detach(ctx context.Context, kind models.LinkParentKind, parentID, linkID uuid.UUID) error {
	if !kind.IsValid() {
		return apperrors.Validation("unknown link parent kind %q", kind)
	}
	if err := s.repo.Detach(ctx, kind, parentID, linkID); err != nil {
		return err
	}
	s.usage.Invalidate(ctx)
	return nil
}

func (s *linkService) Reorder(ctx context.Context, in models.ReorderLinkInput) (*models.LinkAttachment, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	return s.repo.Reorder(ctx, in)
}

func (s *linkService) LinksFor(ctx context.Context, kind models.LinkParentKind, parentID uuid.UUID) ([]*models.AttachedLink, error) {
	if !kind.IsValid() {
		return nil, apperrors.Validation("unknown link parent kind %q", kind)
	}
	exists, err := s.repo.ParentExists(ctx, kind, parentID)
	if err := requireFound(exists, err, string(kind), parentID); err != nil {
		return nil, err
	}
	return s.repo.LinksFor(ctx, kind, parentID)
}

func (s *linkService) BulkAttach(ctx context.Context, in []models.AttachLinkInput) ([]*models.LinkAttachment, error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("at least one attachment is required")
	}

	out := make([]*models.LinkAttachment, 0, len(in))
	err := s.withTx(ctx, func(ctx context.Context) error {
		for _, item := range in {
			att, err := s.attach(ctx, item)
			if err != nil {
				return err
			}
			out = append(out, att)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Bulk attach rolled back", zap.Int("count", len(in)), zap.Error(err))
		return nil, err
	}

	s.usage.Invalidate(ctx)
	s.logger.Info("Bulk attached links", zap.Int("count", len(out)))
	return out, nil
}

func (s *linkService) ReorderAll(ctx context.Context, in []models.ReorderLinkInput) ([]*models.LinkAttachment, error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("at least one reorder is required")
	}

	out := make([]*models.LinkAttachment, 0, len(in))
	err := s.withTx(ctx, func(ctx context.Context) error {
		for _, item := range in {
			att, err := s.Reorder(ctx, item)
			if err != nil {
				return err
			}
			out = append(out, att)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Reorder rolled back", zap.Int("count", len(in)), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// ============================================================================
// Maintenance
// ============================================================================

func (s *linkService) Verify(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	link, err := s.repo.MarkVerified(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Verified link", zap.String("link_id", id.String()))
	return link, nil
}

func (s *linkService) UsageStats(ctx context.Context, linkID *uuid.UUID) ([]*models.LinkUsage, error) {
	key := cache.AllLinksKey
	if linkID != nil {
		key = linkID.String()
	}
	if stats, ok := s.usage.Get(ctx, key); ok {
		return stats, nil
	}

	stats, err := s.repo.UsageStats(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if linkID != nil && len(stats) == 0 {
		return nil, apperrors.NotFound("link", *linkID)
	}

	s.usage.Set(ctx, key, stats)
	return stats, nil
}

func (s *linkService) Orphaned(ctx context.Context) ([]*models.Link, error) {
	return s.repo.Orphaned(ctx)
}

func (s *linkService) NeedingVerification(ctx context.Context) ([]*models.Link, error) {
	return s.repo.NeedingVerification(ctx, s.now().Add(-s.staleAfter))
}
