package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger is the process-wide sink for request and audit lines. Output
// goes to stdout unbuffered, one JSON object per line, so the collector
// needs no framing beyond newline splitting.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest serializes an access-log entry onto the shared logger.
// Entries come from the request middleware and carry method, path,
// status, duration and the correlation id.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"access log entry not serializable"}`)
		return
	}
	Logger().Println(string(data))
}
