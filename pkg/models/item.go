// Package models defines the shared data types for the AI Employee system:
// perceived items, queue file headers, approval requests, and action results.
package models

import "time"

// ItemKind classifies the external source an item was perceived from.
type ItemKind string

const (
	KindEmail    ItemKind = "email"
	KindChat     ItemKind = "chat_message"
	KindFileDrop ItemKind = "file_drop"
)

// Priority represents the urgency of a queue item.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the sort rank of a priority: critical sorts first.
// Unknown priorities rank with low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// ItemRecord is the normalized in-memory representation of one perceived
// external event, prior to materialization as a queue file. The ID must be
// stable across polls of the same source: it is the deduplication key.
type ItemRecord struct {
	ID               string
	Kind             ItemKind
	Source           string
	Subject          string
	Content          string
	Priority         Priority
	ReceivedAt       time.Time
	RequiresApproval bool

	// Extra carries source-specific header fields (attachment names,
	// chat name, file size) that the adapter wants in the queue file.
	Extra map[string]any
}
