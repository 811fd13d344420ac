package model

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	Id                     uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgId                  string     `gorm:"type:varchar(255);not null;index"`
	Name                   string     `gorm:"type:varchar(255);not null"`
	ProductionDeploymentId *uuid.UUID `gorm:"type:uuid"`
	StagingDeploymentId    *uuid.UUID `gorm:"type:uuid"`
	CreatedAt              time.Time  `gorm:"autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime"`

	Documents   []Document   `gorm:"foreignKey:ProjectId;constraint:OnDelete:CASCADE"`
	Deployments []Deployment `gorm:"foreignKey:ProjectId;constraint:OnDelete:CASCADE"`
}

func (Project) TableName() string {
	return "projects"
}
