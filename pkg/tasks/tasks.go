// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// ImageArchiveTask represents one image reference to be archived to object storage.
type ImageArchiveTask struct {
	SessionID string `json:"session_id"`
	ImageURI  string `json:"image_uri"`
	Filename  string `json:"filename"`
}
