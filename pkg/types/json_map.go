package types

// JSONMap stores an opaque JSON object, e.g. a supplier's raw API response
// retained for audits. Persisted through GORM's json serializer.
type JSONMap map[string]any
