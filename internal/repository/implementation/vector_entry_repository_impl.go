package implementation

import (
	"context"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/mapper"
	"ai-research-be/internal/model"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type VectorEntryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.VectorEntryMapper
}

func NewVectorEntryRepository(db *gorm.DB) contract.VectorEntryRepository {
	return &VectorEntryRepositoryImpl{
		db:     db,
		mapper: mapper.NewVectorEntryMapper(),
	}
}

func (r *VectorEntryRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *VectorEntryRepositoryImpl) Create(ctx context.Context, entry *entity.VectorEntry) error {
	m := r.mapper.ToModel(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*entry = *r.mapper.ToEntity(m)
	return nil
}

func (r *VectorEntryRepositoryImpl) CreateBulk(ctx context.Context, entries []*entity.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	models := make([]*model.VectorEntry, len(entries))
	for i, e := range entries {
		models[i] = r.mapper.ToModel(e)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*entries[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *VectorEntryRepositoryImpl) DeleteByIds(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&model.VectorEntry{}).Error
}

func (r *VectorEntryRepositoryImpl) DeleteBySource(ctx context.Context, namespace, sourceId string) error {
	return r.db.WithContext(ctx).
		Where("namespace = ? AND source_id = ?", namespace, sourceId).
		Delete(&model.VectorEntry{}).Error
}

func (r *VectorEntryRepositoryImpl) DeleteByNamespace(ctx context.Context, namespace string) error {
	return r.db.WithContext(ctx).
		Where("namespace = ?", namespace).
		Delete(&model.VectorEntry{}).Error
}

func (r *VectorEntryRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.VectorEntry, error) {
	var models []*model.VectorEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.VectorEntry, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *VectorEntryRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.VectorEntry{}).Count(&count).Error
	return count, err
}

func (r *VectorEntryRepositoryImpl) FindOldestBySource(ctx context.Context, namespace, sourceId string, limit int) ([]*entity.VectorEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	var models []*model.VectorEntry
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND source_id = ?", namespace, sourceId).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.VectorEntry, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

// SearchSimilarWithScore computes cosine similarity as 1 - (embedding <=> query)
// and filters by threshold inside the database.
func (r *VectorEntryRepositoryImpl) SearchSimilarWithScore(ctx context.Context, namespace string, embedding []float32, limit int, threshold float64, sourceId string) ([]*contract.ScoredVectorEntry, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.VectorEntry
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("vector_entries").
		Select("vector_entries.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("namespace = ?", namespace).
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold)

	if sourceId != "" {
		query = query.Where("source_id = ?", sourceId)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredVectorEntry, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredVectorEntry{
			Entry:      r.mapper.ToEntity(&res.VectorEntry),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
