package notify

import (
	"go.uber.org/zap"

	"github.com/dmarsh/guardops-api-go/pkg/models"
)

// Notifier is the outbound notification collaborator. Calls are
// fire-and-forget; the scheduling engine never blocks on delivery.
type Notifier interface {
	AssignmentCreated(assignment models.ShiftAssignment, shift models.Shift)
	GuardDeclined(assignment models.ShiftAssignment)
	AssignmentCancelled(assignment models.ShiftAssignment, reason string)
}

// LogNotifier records notification events in the application log.
// Email/SMS delivery is handled by the separate notification service; this
// implementation keeps the contract observable until that integration lands.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AssignmentCreated(assignment models.ShiftAssignment, shift models.Shift) {
	n.log.Info("notify: assignment created",
		zap.String("assignment_id", assignment.ID),
		zap.String("guard_id", assignment.GuardID),
		zap.String("shift_title", shift.Title))
}

func (n *LogNotifier) GuardDeclined(assignment models.ShiftAssignment) {
	n.log.Info("notify: guard declined",
		zap.String("assignment_id", assignment.ID),
		zap.String("guard_id", assignment.GuardID),
		zap.String("shift_id", assignment.ShiftID))
}

func (n *LogNotifier) AssignmentCancelled(assignment models.ShiftAssignment, reason string) {
	n.log.Info("notify: assignment cancelled",
		zap.String("assignment_id", assignment.ID),
		zap.String("reason", reason))
}

// NopNotifier discards all notifications; used in tests
type NopNotifier struct{}

func (NopNotifier) AssignmentCreated(models.ShiftAssignment, models.Shift) {}
func (NopNotifier) GuardDeclined(models.ShiftAssignment)                   {}
func (NopNotifier) AssignmentCancelled(models.ShiftAssignment, string)     {}
