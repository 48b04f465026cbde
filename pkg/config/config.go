// Package config provides configuration management for the interview server.
//
// Configuration is a single YAML document in K8s-style manifest format:
//
//	apiVersion: interviewkit.altairalabs.ai/v1alpha1
//	kind: InterviewServer
//	metadata:
//	  name: production
//	spec:
//	  server:
//	    addr: ":8080"
//	  dialogue:
//	    apiKey: ${OPENAI_API_KEY}
//
// Loading happens in four steps: optional .env files are loaded into the
// process environment, ${VAR} references are expanded, the document is
// checked against the embedded JSON schema, and the decoded spec is filled
// with defaults and validated.
//
// The package is organized into:
//   - types.go: the Config tree
//   - defaults.go: default values
//   - loader.go: Load and environment expansion
//   - schema_validator.go: JSON schema validation
//   - validator.go: cross-field validation
//   - logging.go: logging section
package config
