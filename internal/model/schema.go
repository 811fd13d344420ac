package model

func enum(name string, values string) string {
	return `DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = '` + name + `') THEN CREATE TYPE ` + name + ` AS ENUM (` + values + `); END IF; END $$;`
}

// SchemaSetup creates the extensions and enum types the models reference.
var SchemaSetup = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	`CREATE EXTENSION IF NOT EXISTS vector;`,
	enum("refresh_frequency", `'none', 'daily', 'weekly', 'monthly'`),
	enum("snapshot_type", `'upload', 'website'`),
	enum("snapshot_status", `'queued', 'running', 'success', 'error'`),
	enum("deployment_status", `'queued', 'running', 'ready', 'error'`),
	enum("deployment_environment", `'production', 'staging'`),
}

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&Project{},
		&Document{},
		&Snapshot{},
		&SnapshotChunk{},
		&Deployment{},
		&SnapshotDeploymentRel{},
	}
}

// SchemaConstraints holds the indexes and keys AutoMigrate cannot express.
// The constraint statements fail harmlessly once they exist.
var SchemaConstraints = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_deployments_one_production
	 ON deployments (project_id) WHERE environment = 'production';`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_deployments_one_staging
	 ON deployments (project_id) WHERE environment = 'staging';`,
	`CREATE INDEX IF NOT EXISTS idx_snapshot_chunks_embedding
	 ON snapshot_chunks USING hnsw (embedding vector_cosine_ops);`,
	`ALTER TABLE projects ADD CONSTRAINT fk_projects_production_deployment
	 FOREIGN KEY (production_deployment_id) REFERENCES deployments(id) ON DELETE SET NULL;`,
	`ALTER TABLE projects ADD CONSTRAINT fk_projects_staging_deployment
	 FOREIGN KEY (staging_deployment_id) REFERENCES deployments(id) ON DELETE SET NULL;`,
}
