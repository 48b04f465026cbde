package config

// Version constants for InterviewKit manifests.
const (
	// APIVersion is the Kubernetes-style API version for server configs
	APIVersion = "interviewkit.altairalabs.ai/v1alpha1"

	// SchemaVersion is the version string used in schema ids
	SchemaVersion = "v1alpha1"

	// KindInterviewServer is the only manifest kind.
	KindInterviewServer = "InterviewServer"
)
