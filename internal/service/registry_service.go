package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

type categoryRepository interface {
	List(ctx context.Context, includeInactive bool) ([]models.StatCategory, error)
	FindByID(ctx context.Context, id string) (*models.StatCategory, error)
	Create(ctx context.Context, category *models.StatCategory) error
	Update(ctx context.Context, category *models.StatCategory) error
	CountTopics(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

type topicRepository interface {
	List(ctx context.Context, filter models.TopicFilter) ([]models.StatTopic, error)
	FindByID(ctx context.Context, id string) (*models.StatTopic, error)
	Create(ctx context.Context, topic *models.StatTopic) error
	Update(ctx context.Context, topic *models.StatTopic) error
	Delete(ctx context.Context, id string) error
}

type topicReferenceCounter interface {
	CountTopicReferences(ctx context.Context, topicID string) (int, error)
}

// RegistryService manages the category and topic catalogue that report data is keyed by.
type RegistryService struct {
	categories categoryRepository
	topics     topicRepository
	references topicReferenceCounter
	audit      auditRecorder
	cache      *CacheService
	policy     Policy
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewRegistryService constructs the service.
func NewRegistryService(categories categoryRepository, topics topicRepository, references topicReferenceCounter, audit auditRecorder, cache *CacheService, policy Policy, validate *validator.Validate, logger *zap.Logger) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if policy == nil {
		policy = DefaultPolicy
	}
	return &RegistryService{categories: categories, topics: topics, references: references, audit: audit, cache: cache, policy: policy, validator: validate, logger: logger}
}

// ListCategories returns categories by display order.
func (s *RegistryService) ListCategories(ctx context.Context, includeInactive bool) ([]models.StatCategory, error) {
	categories, err := s.categories.List(ctx, includeInactive)
	if err != nil {
		return nil, internalError(err, "failed to list categories")
	}
	return categories, nil
}

// ListTopics returns topics, optionally restricted to a category.
func (s *RegistryService) ListTopics(ctx context.Context, filter models.TopicFilter) ([]models.StatTopic, error) {
	topics, err := s.topics.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list topics")
	}
	return topics, nil
}

// Snapshot loads the full registry, inactive entries included, for aggregation.
func (s *RegistryService) Snapshot(ctx context.Context) (*stats.Registry, error) {
	categories, err := s.categories.List(ctx, true)
	if err != nil {
		return nil, internalError(err, "failed to load categories")
	}
	topics, err := s.topics.List(ctx, models.TopicFilter{IncludeInactive: true})
	if err != nil {
		return nil, internalError(err, "failed to load topics")
	}
	cats := make([]stats.Category, 0, len(categories))
	for _, c := range categories {
		cats = append(cats, c.ToStats())
	}
	tops := make([]stats.Topic, 0, len(topics))
	for _, t := range topics {
		tops = append(tops, t.ToStats())
	}
	return stats.NewRegistry(cats, tops), nil
}

// Ordered returns the registry as ordered categories with their topics, the
// structure used for data entry forms.
func (s *RegistryService) Ordered(ctx context.Context, includeInactive bool) ([]dto.RegistryCategory, error) {
	reg, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []dto.RegistryCategory
	for _, ct := range reg.Ordered() {
		if !includeInactive && !ct.Category.IsActive {
			continue
		}
		entry := dto.RegistryCategory{
			ID:          ct.Category.ID,
			Name:        ct.Category.Name,
			Description: ct.Category.Description,
			Order:       ct.Category.Order,
			IsActive:    ct.Category.IsActive,
			Topics:      make([]dto.RegistryTopic, 0, len(ct.Topics)),
		}
		for _, t := range ct.Topics {
			if !includeInactive && !t.IsActive {
				continue
			}
			entry.Topics = append(entry.Topics, dto.RegistryTopic{ID: t.ID, Name: t.Name, Order: t.Order, IsActive: t.IsActive})
		}
		out = append(out, entry)
	}
	return out, nil
}

// CreateCategory registers a new category.
func (s *RegistryService) CreateCategory(ctx context.Context, actor Actor, req dto.CategoryRequest) (*models.StatCategory, error) {
	if err := authorize(s.policy, actor, OpRegistryManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid category payload")
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = identifierFromName(req.Name)
	}
	if strings.Contains(id, stats.TopicSeparator) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category id must not contain '.'")
	}
	if _, err := s.categories.FindByID(ctx, id); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "category already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check category")
	}

	category := &models.StatCategory{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		NameAr:      req.NameAr,
		Description: req.Description,
		SortOrder:   req.Order,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, internalError(err, "failed to create category")
	}
	s.changed(ctx, actor, "category_created", category.ID)
	return category, nil
}

// UpdateCategory changes a category, including its activation flag.
func (s *RegistryService) UpdateCategory(ctx context.Context, actor Actor, id string, req dto.CategoryRequest) (*models.StatCategory, error) {
	if err := authorize(s.policy, actor, OpRegistryManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid category payload")
	}
	category, err := s.loadCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Name = strings.TrimSpace(req.Name)
	category.NameAr = req.NameAr
	category.Description = req.Description
	category.SortOrder = req.Order
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, internalError(err, "failed to update category")
	}
	s.changed(ctx, actor, "category_updated", category.ID)
	return category, nil
}

// DeleteCategory hard deletes a category that no topic references.
func (s *RegistryService) DeleteCategory(ctx context.Context, actor Actor, id string) error {
	if err := authorize(s.policy, actor, OpRegistryManage); err != nil {
		return err
	}
	if _, err := s.loadCategory(ctx, id); err != nil {
		return err
	}
	count, err := s.categories.CountTopics(ctx, id)
	if err != nil {
		return internalError(err, "failed to count category topics")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("category has %d topics; deactivate it or move its topics first", count))
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete category")
	}
	s.changed(ctx, actor, "category_deleted", id)
	return nil
}

// CreateTopic registers a topic under an existing category.
func (s *RegistryService) CreateTopic(ctx context.Context, actor Actor, req dto.TopicRequest) (*models.StatTopic, error) {
	if err := authorize(s.policy, actor, OpRegistryManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid topic payload")
	}
	if _, err := s.loadCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = req.CategoryID + stats.TopicSeparator + identifierFromName(req.Name)
	}
	if _, err := s.topics.FindByID(ctx, id); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "topic already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check topic")
	}

	topic := &models.StatTopic{
		ID:         id,
		CategoryID: req.CategoryID,
		Name:       strings.TrimSpace(req.Name),
		NameAr:     req.NameAr,
		SortOrder:  req.Order,
		IsActive:   req.IsActive == nil || *req.IsActive,
	}
	if err := s.topics.Create(ctx, topic); err != nil {
		return nil, internalError(err, "failed to create topic")
	}
	s.changed(ctx, actor, "topic_created", topic.ID)
	return topic, nil
}

// UpdateTopic changes a topic. Moving it to another category keeps its identifier,
// so historical report data follows it.
func (s *RegistryService) UpdateTopic(ctx context.Context, actor Actor, id string, req dto.TopicRequest) (*models.StatTopic, error) {
	if err := authorize(s.policy, actor, OpRegistryManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid topic payload")
	}
	topic, err := s.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CategoryID != topic.CategoryID {
		if _, err := s.loadCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
	}
	topic.CategoryID = req.CategoryID
	topic.Name = strings.TrimSpace(req.Name)
	topic.NameAr = req.NameAr
	topic.SortOrder = req.Order
	if req.IsActive != nil {
		topic.IsActive = *req.IsActive
	}
	if err := s.topics.Update(ctx, topic); err != nil {
		return nil, internalError(err, "failed to update topic")
	}
	s.changed(ctx, actor, "topic_updated", topic.ID)
	return topic, nil
}

// DeleteTopic hard deletes a topic no report references. Referenced topics must be deactivated instead.
func (s *RegistryService) DeleteTopic(ctx context.Context, actor Actor, id string) error {
	if err := authorize(s.policy, actor, OpRegistryManage); err != nil {
		return err
	}
	if _, err := s.loadTopic(ctx, id); err != nil {
		return err
	}
	if s.references != nil {
		count, err := s.references.CountTopicReferences(ctx, id)
		if err != nil {
			return internalError(err, "failed to check topic usage")
		}
		if count > 0 {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("topic is used by %d reports; deactivate it instead", count))
		}
	}
	if err := s.topics.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete topic")
	}
	s.changed(ctx, actor, "topic_deleted", id)
	return nil
}

func (s *RegistryService) loadCategory(ctx context.Context, id string) (*models.StatCategory, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, internalError(err, "failed to load category")
	}
	return category, nil
}

func (s *RegistryService) loadTopic(ctx context.Context, id string) (*models.StatTopic, error) {
	topic, err := s.topics.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, internalError(err, "failed to load topic")
	}
	return topic, nil
}

// changed drops cached consolidations, whose summaries embed registry names and order.
func (s *RegistryService) changed(ctx context.Context, actor Actor, event, id string) {
	s.logger.Info("registry changed", zap.String("event", event), zap.String("id", id))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionRegistryChange, event, id)
	if err := s.cache.Invalidate(ctx, consolidationCachePattern); err != nil {
		s.logger.Warn("failed to invalidate consolidation cache", zap.Error(err))
	}
}

// identifierFromName builds a lowerCamel identifier from the ASCII letters and
// digits of name, falling back to a random suffix for names without any.
func identifierFromName(name string) string {
	var b strings.Builder
	upperNext := false
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			upperNext = b.Len() > 0
			continue
		}
		if b.Len() == 0 {
			b.WriteRune(unicode.ToLower(r))
		} else if upperNext {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		upperNext = false
	}
	if b.Len() == 0 {
		return "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return b.String()
}
