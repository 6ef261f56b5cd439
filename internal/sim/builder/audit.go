package builder

import "voxelbuild.ai/internal/sim/inventory"

const (
	AuditDestroy          = "DESTROY"
	AuditDestroyCancelled = "DESTROY_CANCELLED"
	AuditPlace            = "PLACE"
	AuditPlaceFailed      = "PLACE_FAILED"
	AuditCancel           = "CANCEL"
	AuditPrune            = "PRUNE"
)

// AuditEntry records one commit, rollback or refund.
type AuditEntry struct {
	Seq    uint64                `json:"seq"`
	Action string                `json:"action"`
	Pos    [3]int                `json:"pos"`
	Target uint64                `json:"target,omitempty"`
	Refund uint64                `json:"refund,omitempty"`
	Items  []inventory.ItemStack `json:"items,omitempty"`
}

type AuditSink interface {
	WriteAudit(e AuditEntry) error
}
