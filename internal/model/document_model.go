package model

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId        uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_documents_project_folder_name,priority:1"`
	OrgId            string    `gorm:"type:varchar(255);not null;index"`
	Folder           string    `gorm:"type:text;not null;default:'/';uniqueIndex:idx_documents_project_folder_name,priority:2"`
	Name             string    `gorm:"type:text;not null;uniqueIndex:idx_documents_project_folder_name,priority:3"`
	RefreshFrequency string    `gorm:"type:refresh_frequency;not null;default:'none'"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`

	Snapshots []Snapshot `gorm:"foreignKey:DocumentId;constraint:OnDelete:CASCADE"`
}

func (Document) TableName() string {
	return "documents"
}
