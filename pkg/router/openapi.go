package router

import (
	"os"
	"path/filepath"

	"whatsjuju-chat/backend/pkg/validator"
)

// AddOpenAPIValidation validates requests against the document at schemaPath
// and serves it under /api/docs. A missing or invalid document is logged and
// skipped.
func (r *Router) AddOpenAPIValidation(schemaPath string) {
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.LogError(err, "OpenAPI validator not loaded", "path", schemaPath)
		return
	}

	r.Engine.Use(v.Middleware())
	r.Engine.StaticFile("/api/docs/"+filepath.Base(schemaPath), schemaPath)
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)
}
