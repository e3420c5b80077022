package config

type WorkerKeyStruct struct {
	PersistAttemptsQueue string
	PersistScoresQueue   string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAttemptsQueue: "persist_attempts_queue",
	PersistScoresQueue:   "persist_scores_queue",
}
