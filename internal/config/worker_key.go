package config

type WorkerKeyStruct struct {
	// LedgerLogsQueue receives the logs of every mined transaction.
	LedgerLogsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	LedgerLogsQueue: "ledger_logs_queue",
}
