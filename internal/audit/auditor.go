package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"rhystmorgan/tokenSend/internal/transfer"
)

const defaultFlushInterval = time.Minute

// TransferAuditor appends transfer lifecycle events to a daily JSON lines file.
type TransferAuditor struct {
	logFile       string
	token         string
	batchSize     int
	flushInterval time.Duration
	logger        *log.Logger
	now           func() time.Time

	batchMu    sync.Mutex
	batchLogs  []AuditLog
	flushTimer *time.Timer
	closed     bool
}

// NewTransferAuditor creates a new TransferAuditor writing under logDir.
// Buffered entries are written every minute or once ten have accumulated.
func NewTransferAuditor(logDir, token string, logger *log.Logger) (*TransferAuditor, error) {
	return newTransferAuditor(logDir, token, logger, defaultFlushInterval)
}

func newTransferAuditor(logDir, token string, logger *log.Logger, flushInterval time.Duration) (*TransferAuditor, error) {
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("transfers_%s.log", time.Now().Format("2006-01-02")))

	auditor := &TransferAuditor{
		logFile:       logFile,
		token:         token,
		batchSize:     10,
		flushInterval: flushInterval,
		logger:        logger.With("component", "audit"),
		now:           time.Now,
		batchLogs:     make([]AuditLog, 0, 10),
	}

	auditor.batchMu.Lock()
	auditor.flushTimer = time.AfterFunc(flushInterval, auditor.timedFlush)
	auditor.batchMu.Unlock()

	return auditor, nil
}

func (a *TransferAuditor) Path() string {
	return a.logFile
}

// Watch records the states of a controller subscription until the channel
// closes. Repeated states produce a single entry.
func (a *TransferAuditor) Watch(states <-chan transfer.State) {
	var last *AuditLog
	for state := range states {
		entry, ok := a.entryFor(state)
		if !ok {
			last = nil
			continue
		}
		if last != nil && last.Action == entry.Action && last.TxHash == entry.TxHash {
			continue
		}
		if err := a.append(entry); err != nil {
			a.logger.Error("failed to write audit log", "action", entry.Action, "tx", entry.TxHash, "err", err)
		}
		last = &entry
	}
}

func (a *TransferAuditor) timedFlush() {
	if err := a.Flush(); err != nil {
		a.logger.Error("failed to flush audit log", "err", err)
	}
}

func (a *TransferAuditor) entryFor(state transfer.State) (AuditLog, bool) {
	entry := AuditLog{
		ID:        uuid.NewString(),
		Timestamp: a.now(),
		Token:     a.token,
		TxHash:    state.TxHash,
	}

	switch state.Phase {
	case transfer.AwaitingSignature:
		entry.Action = AuditActionSignatureRequested
	case transfer.Ready:
		if state.Notice == nil || state.Notice.Kind != transfer.NoticeRejected {
			return entry, false
		}
		entry.Action = AuditActionRejected
	case transfer.Pending:
		entry.Action = AuditActionSubmitted
		if state.LongPending {
			entry.Action = AuditActionLongPending
		}
	case transfer.Confirmed:
		entry.Action = AuditActionConfirmed
	case transfer.Failed:
		entry.Action = AuditActionFailed
		entry.Reason = string(state.Reason)
		if state.Detail != "" {
			entry.Details = map[string]interface{}{"detail": state.Detail}
		}
	default:
		return entry, false
	}
	return entry, true
}

func (a *TransferAuditor) append(entry AuditLog) error {
	a.batchMu.Lock()
	a.batchLogs = append(a.batchLogs, entry)

	if len(a.batchLogs) >= a.batchSize {
		a.batchMu.Unlock()
		return a.Flush()
	}
	a.batchMu.Unlock()

	return nil
}

// Flush writes all pending audit logs to storage and restarts the flush timer.
func (a *TransferAuditor) Flush() error {
	a.batchMu.Lock()
	if a.flushTimer != nil && !a.closed {
		a.flushTimer.Reset(a.flushInterval)
	}
	if len(a.batchLogs) == 0 {
		a.batchMu.Unlock()
		return nil
	}

	logsToFlush := make([]AuditLog, len(a.batchLogs))
	copy(logsToFlush, a.batchLogs)
	a.batchLogs = a.batchLogs[:0]
	a.batchMu.Unlock()

	file, err := os.OpenFile(a.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	defer file.Close()

	for _, entry := range logsToFlush {
		logJSON, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit log: %w", err)
		}

		if _, err := file.Write(append(logJSON, '\n')); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
	}

	return nil
}

// History returns the audited events of one transaction
func (a *TransferAuditor) History(txHash string) ([]AuditLog, error) {
	var logs []AuditLog

	if err := a.Flush(); err != nil {
		return nil, err
	}

	file, err := os.Open(a.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return logs, nil
		}
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	for {
		var entry AuditLog
		if err := decoder.Decode(&entry); err != nil {
			break
		}

		if entry.TxHash == txHash {
			logs = append(logs, entry)
		}
	}

	return logs, nil
}

// Close ensures all pending logs are written
func (a *TransferAuditor) Close() error {
	a.batchMu.Lock()
	a.closed = true
	if a.flushTimer != nil {
		a.flushTimer.Stop()
	}
	a.batchMu.Unlock()
	return a.Flush()
}
