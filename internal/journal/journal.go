// Package journal appends one JSON line per evaluated variant so a run can be
// inspected after the fact.
package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultFile = "journal.jsonl"

type Event struct {
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"run_id"`
	Tool       string `json:"tool"`
	Testcase   int    `json:"testcase"`
	ID         string `json:"id"`
	Parent     string `json:"parent,omitempty"`
	Flow       string `json:"flow,omitempty"`
	Length     int    `json:"length"`
	Depth      int    `json:"depth"`
	Pos        string `json:"pos"`
	Neg        string `json:"neg"`
	Category   string `json:"category"`
	PosExit    int    `json:"pos_exit"`
	NegExit    int    `json:"neg_exit"`
	DurationMs int64  `json:"duration_ms"`
	Robust     bool   `json:"robust"`
	Expanded   bool   `json:"expanded"`
}

// Journal is safe for concurrent use by every pattern task of a run.
type Journal struct {
	file  *os.File
	runID string
	mu    sync.Mutex
}

func New(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &Journal{file: file, runID: uuid.NewString()}, nil
}

// RunID identifies every event written through this journal.
func (j *Journal) RunID() string {
	return j.runID
}

func (j *Journal) Log(event Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	event.RunID = j.runID

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = j.file.Write(data)
	return err
}

func (j *Journal) Close() error {
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

// Read loads every event of a journal file. A missing file yields no events;
// malformed lines are skipped.
func Read(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}
