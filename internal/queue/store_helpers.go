package queue

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/jmoiron/sqlx"
)

const entryColumns = "qid, page_id, parameters, parameters_hash, configuration, configuration_hash, set_id, scheduled, exec_time, result_data, process_id, process_scheduled, process_id_completed"

const selectEntries = `SELECT ` + entryColumns + ` FROM ` + queueTable

// Pending and assignment predicates shared by counts and mutations.
const (
	wherePending    = "exec_time = 0"
	whereExecuted   = "exec_time != 0"
	whereAssigned   = "exec_time = 0 AND process_scheduled != 0"
	whereUnassigned = "exec_time = 0 AND process_scheduled = 0"
)

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// hashParameters returns the md5 hex digest used for parameter deduplication.
func hashParameters(parameters string) string {
	sum := md5.Sum([]byte(parameters))
	return hex.EncodeToString(sum[:])
}

// expandIn expands slice arguments into IN (?, ?, ...) lists.
func expandIn(query string, args ...any) (string, []any, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, invalidArgument("expand query arguments: %v", err)
	}
	return expanded, expandedArgs, nil
}
