package scope

import "gorm.io/gorm"

func OrderByCreatedDesc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}

func OrderByCreatedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// LatestPerDocument keeps the newest snapshot row of every document. It must
// run on a query over the snapshots table.
func LatestPerDocument(db *gorm.DB) *gorm.DB {
	return db.Select("DISTINCT ON (snapshots.document_id) snapshots.*").
		Order("snapshots.document_id, snapshots.created_at DESC")
}
