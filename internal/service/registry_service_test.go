package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

type memCategoryRepo struct {
	items map[string]models.StatCategory
}

func (m *memCategoryRepo) List(ctx context.Context, includeInactive bool) ([]models.StatCategory, error) {
	var out []models.StatCategory
	for _, c := range m.items {
		if includeInactive || c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memCategoryRepo) FindByID(ctx context.Context, id string) (*models.StatCategory, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *memCategoryRepo) Create(ctx context.Context, category *models.StatCategory) error {
	m.items[category.ID] = *category
	return nil
}

func (m *memCategoryRepo) Update(ctx context.Context, category *models.StatCategory) error {
	m.items[category.ID] = *category
	return nil
}

func (m *memCategoryRepo) CountTopics(ctx context.Context, id string) (int, error) {
	return 0, nil
}

func (m *memCategoryRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type memTopicRepo struct {
	items map[string]models.StatTopic
}

func (m *memTopicRepo) List(ctx context.Context, filter models.TopicFilter) ([]models.StatTopic, error) {
	var out []models.StatTopic
	for _, t := range m.items {
		if filter.CategoryID != "" && t.CategoryID != filter.CategoryID {
			continue
		}
		if filter.IncludeInactive || t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTopicRepo) FindByID(ctx context.Context, id string) (*models.StatTopic, error) {
	t, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *memTopicRepo) Create(ctx context.Context, topic *models.StatTopic) error {
	m.items[topic.ID] = *topic
	return nil
}

func (m *memTopicRepo) Update(ctx context.Context, topic *models.StatTopic) error {
	m.items[topic.ID] = *topic
	return nil
}

func (m *memTopicRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

// countingCategoryRepo reports topic counts from the paired topic repo.
type countingCategoryRepo struct {
	*memCategoryRepo
	topics *memTopicRepo
}

func (c countingCategoryRepo) CountTopics(ctx context.Context, id string) (int, error) {
	n := 0
	for _, t := range c.topics.items {
		if t.CategoryID == id {
			n++
		}
	}
	return n, nil
}

type topicRefStub map[string]int

func (s topicRefStub) CountTopicReferences(ctx context.Context, topicID string) (int, error) {
	return s[topicID], nil
}

type auditSink struct {
	entries []*models.AuditLog
}

func (a *auditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

type registryFixture struct {
	svc        *RegistryService
	categories *memCategoryRepo
	topics     *memTopicRepo
	refs       topicRefStub
	audit      *auditSink
}

func newRegistryFixture(t *testing.T) registryFixture {
	t.Helper()
	cats := &memCategoryRepo{items: map[string]models.StatCategory{
		"immunization": {ID: "immunization", Name: "Immunization", SortOrder: 1, IsActive: true},
		"nutrition":    {ID: "nutrition", Name: "Nutrition", SortOrder: 0, IsActive: false},
	}}
	topics := &memTopicRepo{items: map[string]models.StatTopic{
		"immunization.childrenVaccination": {ID: "immunization.childrenVaccination", CategoryID: "immunization", Name: "Children vaccination", IsActive: true},
		"immunization.legacyDrive":         {ID: "immunization.legacyDrive", CategoryID: "immunization", Name: "Legacy drive", SortOrder: 1, IsActive: false},
	}}
	refs := topicRefStub{}
	audit := &auditSink{}
	svc := NewRegistryService(countingCategoryRepo{memCategoryRepo: cats, topics: topics}, topics, refs, audit, nil, DefaultPolicy, validator.New(), zap.NewNop())
	return registryFixture{svc: svc, categories: cats, topics: topics, refs: refs, audit: audit}
}

var registryAdmin = Actor{ID: "admin-1", Role: models.RoleAdmin}

func TestRegistryCreateCategoryGeneratesIdentifier(t *testing.T) {
	f := newRegistryFixture(t)

	category, err := f.svc.CreateCategory(context.Background(), registryAdmin, dto.CategoryRequest{Name: "Maternal & Child health", Order: 2})
	require.NoError(t, err)
	assert.Equal(t, "maternalChildHealth", category.ID)
	assert.True(t, category.IsActive)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionRegistryChange, f.audit.entries[0].Action)

	_, err = f.svc.CreateCategory(context.Background(), registryAdmin, dto.CategoryRequest{Name: "Maternal child health"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRegistryCreateCategoryRequiresPermission(t *testing.T) {
	f := newRegistryFixture(t)

	_, err := f.svc.CreateCategory(context.Background(), Actor{ID: "u-1", Role: models.RoleUser}, dto.CategoryRequest{Name: "Screening"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateCategory(context.Background(), Actor{}, dto.CategoryRequest{Name: "Screening"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRegistryCreateTopicPrefixesCategory(t *testing.T) {
	f := newRegistryFixture(t)

	topic, err := f.svc.CreateTopic(context.Background(), registryAdmin, dto.TopicRequest{CategoryID: "immunization", Name: "Polio campaign"})
	require.NoError(t, err)
	assert.Equal(t, "immunization.polioCampaign", topic.ID)

	_, err = f.svc.CreateTopic(context.Background(), registryAdmin, dto.TopicRequest{CategoryID: "missing", Name: "Polio campaign"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegistryUpdateTopicMovesCategory(t *testing.T) {
	f := newRegistryFixture(t)
	inactive := false

	topic, err := f.svc.UpdateTopic(context.Background(), registryAdmin, "immunization.childrenVaccination", dto.TopicRequest{
		CategoryID: "nutrition",
		Name:       "Children vaccination",
		IsActive:   &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "immunization.childrenVaccination", topic.ID)
	assert.Equal(t, "nutrition", f.topics.items[topic.ID].CategoryID)
	assert.False(t, f.topics.items[topic.ID].IsActive)
}

func TestRegistryDeletePreconditions(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	err := f.svc.DeleteCategory(ctx, registryAdmin, "immunization")
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	f.refs["immunization.legacyDrive"] = 3
	err = f.svc.DeleteTopic(ctx, registryAdmin, "immunization.legacyDrive")
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.DeleteTopic(ctx, registryAdmin, "immunization.childrenVaccination"))
	require.NoError(t, f.svc.DeleteCategory(ctx, registryAdmin, "nutrition"))
	assert.NotContains(t, f.categories.items, "nutrition")
}

func TestRegistryOrderedHidesInactive(t *testing.T) {
	f := newRegistryFixture(t)

	visible, err := f.svc.Ordered(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "immunization", visible[0].ID)
	require.Len(t, visible[0].Topics, 1)
	assert.Equal(t, "immunization.childrenVaccination", visible[0].Topics[0].ID)

	all, err := f.svc.Ordered(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "nutrition", all[0].ID)
}

func TestRegistrySnapshotIncludesInactive(t *testing.T) {
	f := newRegistryFixture(t)

	reg, err := f.svc.Snapshot(context.Background())
	require.NoError(t, err)
	topic, category, ok := reg.Classify("immunization.legacyDrive")
	require.True(t, ok)
	assert.False(t, topic.IsActive)
	assert.Equal(t, "immunization", category.ID)
}

func TestIdentifierFromName(t *testing.T) {
	assert.Equal(t, "childrenVaccination", identifierFromName("Children vaccination"))
	assert.Equal(t, "hiv2Awareness", identifierFromName("  HIV 2 awareness!"))
	fallback := identifierFromName("تطعيم")
	assert.Len(t, fallback, 13)
	assert.Equal(t, byte('t'), fallback[0])
}
