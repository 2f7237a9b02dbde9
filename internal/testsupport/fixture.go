package testsupport

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"crawlqueue/internal/config"
)

// FixtureConfigurationHash is the configuration hash carried by fixture
// entry 8 (page 2001).
const FixtureConfigurationHash = "7b6919e533f334550b6f19034dfd2f81"

type fixtureRow struct {
	QID                int64  `db:"qid"`
	PageID             int64  `db:"page_id"`
	SetID              int64  `db:"set_id"`
	Scheduled          int64  `db:"scheduled"`
	ExecTime           int64  `db:"exec_time"`
	ProcessScheduled   int64  `db:"process_scheduled"`
	ProcessID          any    `db:"process_id"`
	ProcessIDCompleted any    `db:"process_id_completed"`
	Configuration      string `db:"configuration"`
	ConfigurationHash  string `db:"configuration_hash"`
}

// fixtureRows is the reference queue: seven executed entries completed by
// three processes and seven pending entries, three of them assigned.
var fixtureRows = []fixtureRow{
	{QID: 2, PageID: 0, SetID: 0, ExecTime: 10, ProcessID: "1002", ProcessIDCompleted: "qwerty", Configuration: "ThirdConfiguration"},
	{QID: 3, PageID: 0, SetID: 0, ExecTime: 20, ProcessID: "1003", ProcessIDCompleted: "qwerty", Configuration: "FirstConfiguration"},
	{QID: 4, PageID: 15, SetID: 0, Scheduled: 100, Configuration: "FirstConfiguration"},
	{QID: 5, PageID: 10, SetID: 321, ExecTime: 10, ProcessID: "1004", ProcessIDCompleted: "asdfgh", Configuration: "FirstConfiguration"},
	{QID: 6, PageID: 11, SetID: 321, ExecTime: 15, ProcessID: "1004", ProcessIDCompleted: "asdfgh", Configuration: "SecondConfiguration"},
	{QID: 7, PageID: 12, SetID: 321, ExecTime: 18, ProcessID: "1004", ProcessIDCompleted: "asdfgh", Configuration: "SecondConfiguration"},
	{QID: 8, PageID: 2001, SetID: 123, Configuration: "SecondConfiguration", ConfigurationHash: FixtureConfigurationHash},
	{QID: 12, PageID: 16, SetID: 456, Scheduled: 200, Configuration: "FirstConfiguration"},
	{QID: 13, PageID: 17, SetID: 789, Scheduled: 4321, Configuration: "SecondConfiguration"},
	{QID: 15, PageID: 20, SetID: 123, Scheduled: 12, ProcessScheduled: 1500, ProcessID: "1007", Configuration: "ThirdConfiguration"},
	{QID: 16, PageID: 13, SetID: 654, ExecTime: 10, ProcessID: "1005", ProcessIDCompleted: "dvorak", Configuration: "ThirdConfiguration"},
	{QID: 17, PageID: 17, SetID: 654, ExecTime: 20, ProcessID: "1005", ProcessIDCompleted: "dvorak", Configuration: "FirstConfiguration"},
	{QID: 18, PageID: 21, SetID: 456, ProcessScheduled: 1500, ProcessID: "1007", Configuration: "ThirdConfiguration"},
	{QID: 19, PageID: 22, SetID: 456, ProcessScheduled: 1600, ProcessID: "1008", Configuration: "SecondConfiguration"},
}

// SeedFixture loads the reference queue into the SQLite database described by
// cfg. The schema must already exist, so open the store first.
func SeedFixture(t testing.TB, cfg *config.Config) {
	t.Helper()

	db, err := sqlx.Open("sqlite", cfg.StorePath())
	if err != nil {
		t.Fatalf("open fixture database: %v", err)
	}
	defer db.Close()

	tx, err := db.Beginx()
	if err != nil {
		t.Fatalf("begin fixture tx: %v", err)
	}
	for _, row := range fixtureRows {
		if _, err := tx.NamedExec(`INSERT INTO crawler_queue (
                qid, page_id, parameters, parameters_hash, configuration, configuration_hash,
                set_id, scheduled, exec_time, result_data, process_id, process_scheduled, process_id_completed
            ) VALUES (
                :qid, :page_id, '', '', :configuration, :configuration_hash,
                :set_id, :scheduled, :exec_time, '', :process_id, :process_scheduled, :process_id_completed
            )`, row); err != nil {
			_ = tx.Rollback()
			t.Fatalf("insert fixture qid %d: %v", row.QID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit fixture: %v", err)
	}
}
