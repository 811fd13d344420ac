package mapper

import (
	"lupa-be/internal/entity"
	"lupa-be/internal/model"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}
	return &entity.Document{
		Id:               d.Id,
		ProjectId:        d.ProjectId,
		OrgId:            d.OrgId,
		Folder:           d.Folder,
		Name:             d.Name,
		RefreshFrequency: entity.RefreshFrequency(d.RefreshFrequency),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        optionalTime(d.UpdatedAt),
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}
	freq := string(d.RefreshFrequency)
	if freq == "" {
		freq = string(entity.RefreshNone)
	}
	return &model.Document{
		Id:               d.Id,
		ProjectId:        d.ProjectId,
		OrgId:            d.OrgId,
		Folder:           d.Folder,
		Name:             d.Name,
		RefreshFrequency: freq,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        requiredTime(d.UpdatedAt),
	}
}

func (m *DocumentMapper) ToEntities(documents []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(documents))
	for i, d := range documents {
		entities[i] = m.ToEntity(d)
	}
	return entities
}
