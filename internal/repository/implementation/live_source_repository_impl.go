package implementation

import (
	"context"
	"errors"

	"ai-research-be/internal/entity"
	"ai-research-be/internal/mapper"
	"ai-research-be/internal/model"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/internal/repository/specification"

	"gorm.io/gorm"
)

type LiveSourceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.LiveSourceMapper
}

func NewLiveSourceRepository(db *gorm.DB) contract.LiveSourceRepository {
	return &LiveSourceRepositoryImpl{
		db:     db,
		mapper: mapper.NewLiveSourceMapper(),
	}
}

func (r *LiveSourceRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *LiveSourceRepositoryImpl) Create(ctx context.Context, source *entity.LiveSource) error {
	m := r.mapper.ToModel(source)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*source = *r.mapper.ToEntity(m)
	return nil
}

func (r *LiveSourceRepositoryImpl) Update(ctx context.Context, source *entity.LiveSource) error {
	m := r.mapper.ToModel(source)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*source = *r.mapper.ToEntity(m)
	return nil
}

func (r *LiveSourceRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.LiveSource, error) {
	var m model.LiveSource
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *LiveSourceRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LiveSource, error) {
	var models []*model.LiveSource
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.LiveSource, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *LiveSourceRepositoryImpl) FindBySourceId(ctx context.Context, sourceId string) (*entity.LiveSource, error) {
	var m model.LiveSource
	err := r.db.WithContext(ctx).Where("source_id = ?", sourceId).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
