package services

import (
	"context"

	"lovemoney/internal/core"
	"lovemoney/internal/log"
	"lovemoney/internal/period"
)

// issueLog collects predicate data-quality events and logs each one.
type issueLog struct {
	ctx    context.Context
	uid    string
	logger *log.StructuredLogger
	issues period.Issues
}

func (l *issueLog) DataQuality(rec core.Record, reason string) {
	l.issues.DataQuality(rec, reason)
	l.logger.LogDataQuality(l.ctx, l.uid, string(rec.Kind()), rec.RecordID(), reason)
}
