package config

// GetCatalogPath returns the path of the target catalog document
func GetCatalogPath() string {
	return GetEnvOrDefault("CATALOG_PATH", "assets/targets.json")
}

// GetTargetUploadDir returns the directory custom target uploads are stored in
func GetTargetUploadDir() string {
	return GetEnvOrDefault("TARGET_UPLOAD_DIR", "uploads/targets")
}
