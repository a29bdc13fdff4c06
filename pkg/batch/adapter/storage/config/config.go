// Package config holds the settings of one named storage connection.
package config

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage: "local" or "gcs".
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file"` // Service account key file for GCS. Empty uses application default credentials.
	Endpoint        string `yaml:"endpoint"`         // Alternative GCS endpoint, e.g. an emulator.
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
}
