// Package interview defines the domain model shared by every InterviewKit
// component: the Session being run, the Turns that make up its Transcript,
// the persisted InterviewRecord, and the error taxonomy.
package interview
