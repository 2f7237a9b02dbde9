package queue

import (
	"database/sql"
	"strconv"
	"strings"
)

// Entry is one unit of crawl work persisted in the queue table.
//
// Timestamps are unix seconds. ExecutedAt == 0 marks a pending entry and
// ProcessScheduledAt == 0 marks an unassigned one. AssignedProcessID and
// CompletedByProcessID are weak references to worker processes; an empty
// string means no reference.
type Entry struct {
	ID                   int64  `json:"qid"`
	PageID               int64  `json:"pageId"`
	Parameters           string `json:"parameters,omitempty"`
	ParametersHash       string `json:"parametersHash,omitempty"`
	ConfigurationName    string `json:"configuration"`
	ConfigurationHash    string `json:"configurationHash,omitempty"`
	SetID                int64  `json:"setId"`
	ScheduledAt          int64  `json:"scheduled"`
	ExecutedAt           int64  `json:"execTime"`
	ResultData           string `json:"resultData,omitempty"`
	AssignedProcessID    string `json:"processId,omitempty"`
	ProcessScheduledAt   int64  `json:"processScheduled"`
	CompletedByProcessID string `json:"processIdCompleted,omitempty"`
}

// IsPending reports whether the entry has not been executed yet.
func (e Entry) IsPending() bool {
	return e.ExecutedAt == 0
}

// IsAssigned reports whether the entry is pending and claimed by a process.
func (e Entry) IsAssigned() bool {
	return e.IsPending() && e.ProcessScheduledAt != 0
}

// IsTimed reports whether the entry was scheduled for a specific time.
func (e Entry) IsTimed() bool {
	return e.ScheduledAt > 0
}

// NewEntry describes a crawl task to insert.
type NewEntry struct {
	PageID            int64
	Parameters        string
	ConfigurationName string
	ConfigurationHash string
	SetID             int64
	ScheduledAt       int64
}

// Process identifies a worker. Process ids are supplied by the scheduler and
// never generated by the store.
type Process struct {
	ProcessID string
}

// PageQueueFilter narrows IsPageInQueue. The zero value matches any entry for
// the page, processed or not.
type PageQueueFilter struct {
	// UnprocessedOnly restricts the check to pending entries.
	UnprocessedOnly bool
	// TimedOnly restricts the check to entries scheduled in the future.
	TimedOnly bool
	// ScheduledAt, when non-zero, restricts the check to entries scheduled
	// at exactly this timestamp.
	ScheduledAt int64
}

// ConfigurationCount is one row of CountPendingItemsGroupedByConfiguration.
type ConfigurationCount struct {
	ConfigurationName      string `db:"configuration" json:"configuration"`
	Unprocessed            int    `db:"unprocessed" json:"unprocessed"`
	AssignedButUnprocessed int    `db:"assigned_but_unprocessed" json:"assignedButUnprocessed"`
}

// SetSummary is one row of AvailableSets. ScheduledAt is taken from the set's
// member with the lowest queue id.
type SetSummary struct {
	SetID       int64 `db:"set_id" json:"setId"`
	Count       int   `db:"count_value" json:"count"`
	ScheduledAt int64 `db:"scheduled" json:"scheduled"`
}

// ProcessPerformance summarizes the executed entries of one process inside a
// time window.
type ProcessPerformance struct {
	ProcessID string `db:"process_id_completed" json:"processId"`
	Start     int64  `db:"start_time" json:"start"`
	End       int64  `db:"end_time" json:"end"`
	URLCount  int    `db:"url_count" json:"urlCount"`
}

// DatabaseHealth captures diagnostic details about the queue database.
type DatabaseHealth struct {
	Driver           string   `json:"driver"`
	DBPath           string   `json:"db_path,omitempty"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present,omitempty"`
	MissingColumns   []string `json:"missing_columns,omitempty"`
	IntegrityCheck   bool     `json:"integrity_ok"`
	TotalItems       int      `json:"total_items"`
	Error            string   `json:"error,omitempty"`
}

// ParsePageID converts untyped page input (CLI flags, request parameters) into
// a page identifier.
func ParsePageID(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, invalidArgument("page id %q is not an integer", value)
	}
	if id < 0 {
		return 0, invalidArgument("page id %d is negative", id)
	}
	return id, nil
}

type entryRow struct {
	ID                   int64          `db:"qid"`
	PageID               int64          `db:"page_id"`
	Parameters           sql.NullString `db:"parameters"`
	ParametersHash       sql.NullString `db:"parameters_hash"`
	ConfigurationName    sql.NullString `db:"configuration"`
	ConfigurationHash    sql.NullString `db:"configuration_hash"`
	SetID                int64          `db:"set_id"`
	ScheduledAt          int64          `db:"scheduled"`
	ExecutedAt           int64          `db:"exec_time"`
	ResultData           sql.NullString `db:"result_data"`
	AssignedProcessID    sql.NullString `db:"process_id"`
	ProcessScheduledAt   int64          `db:"process_scheduled"`
	CompletedByProcessID sql.NullString `db:"process_id_completed"`
}

func (r entryRow) entry() *Entry {
	return &Entry{
		ID:                   r.ID,
		PageID:               r.PageID,
		Parameters:           r.Parameters.String,
		ParametersHash:       r.ParametersHash.String,
		ConfigurationName:    r.ConfigurationName.String,
		ConfigurationHash:    r.ConfigurationHash.String,
		SetID:                r.SetID,
		ScheduledAt:          r.ScheduledAt,
		ExecutedAt:           r.ExecutedAt,
		ResultData:           r.ResultData.String,
		AssignedProcessID:    r.AssignedProcessID.String,
		ProcessScheduledAt:   r.ProcessScheduledAt,
		CompletedByProcessID: r.CompletedByProcessID.String,
	}
}

func entriesFromRows(rows []entryRow) []*Entry {
	entries := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries
}
