package sandbox

import "github.com/diblac17-eng/weftend/pkg/canon"

// TartarusRecord is one append-only violation ledger entry. Records never
// affect digest reproducibility: they are not inputs to the release body,
// only to the portal projection.
type TartarusRecord struct {
	Schema          string   `json:"schema"`
	RecordID        string   `json:"recordId"`
	PlanDigest      string   `json:"planDigest"`
	BlockHash       string   `json:"blockHash"`
	Kind            string   `json:"kind"`
	Severity        string   `json:"severity"`
	Remedy          string   `json:"remedy"`
	ReasonCodes     []string `json:"reasonCodes"`
	StampDigest     string   `json:"stampDigest,omitempty"`
	EvidenceDigests []string `json:"evidenceDigests,omitempty"`
	Seq             int      `json:"seq"`
}

type tartarusMapping struct {
	severity string
	remedy   string
}

// tartarusTable is the closed kind→(severity,remedy) mapping.
var tartarusTable = map[string]tartarusMapping{
	"stamp.missing":              {"QUARANTINE", "CONTACT_SHOP"},
	"stamp.invalid":              {"QUARANTINE", "CONTACT_SHOP"},
	"tier.violation":             {"QUARANTINE", "MOVE_TIER_DOWN"},
	"cap.replay":                 {"DENY", "NONE"},
	"membrane.selftest.failed":   {"DENY", "DOWNGRADE_MODE"},
	"secretzone.unavailable":     {"DENY", "DOWNGRADE_MODE"},
	"secret.leak.attempt":        {"QUARANTINE", "REBUILD_FROM_TRUSTED"},
	"artifact.mismatch":          {"QUARANTINE", "REBUILD_FROM_TRUSTED"},
	"pkg.locator.mismatch":       {"QUARANTINE", "REBUILD_FROM_TRUSTED"},
	"evidence.digest.mismatch":   {"DENY", "PROVIDE_EVIDENCE"},
	"release.manifest.invalid":   {"QUARANTINE", "REBUILD_FROM_TRUSTED"},
	"release.signature.bad":      {"QUARANTINE", "REBUILD_FROM_TRUSTED"},
	"release.manifest.mismatch":  {"DENY", "DOWNGRADE_MODE"},
}

// Ledger is a process-local, append-only sequence of tartarus records.
// Persistence is explicitly unspecified; the ledger exists for the
// duration of one run.
type Ledger struct {
	records []TartarusRecord
	seq     int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger { return &Ledger{} }

// Record appends a new violation of the given kind, computing its severity
// and remedy from the closed table and sealing recordId over the record
// with recordId itself zeroed.
func (l *Ledger) Record(kind, planDigest, blockHash string, reasonCodes []string) (TartarusRecord, error) {
	mapping, ok := tartarusTable[kind]
	if !ok {
		mapping = tartarusMapping{"QUARANTINE", "NONE"}
	}
	l.seq++
	rec := TartarusRecord{
		Schema:      "weftend.tartarus/0",
		PlanDigest:  planDigest,
		BlockHash:   blockHash,
		Kind:        kind,
		Severity:    mapping.severity,
		Remedy:      mapping.remedy,
		ReasonCodes: canon.SortStrings(reasonCodes),
		Seq:         l.seq,
	}
	recordID, err := canon.FNV1a32Canonical(rec)
	if err != nil {
		return TartarusRecord{}, err
	}
	rec.RecordID = recordID
	l.records = append(l.records, rec)
	return rec, nil
}

// Records returns every record appended so far, in append order.
func (l *Ledger) Records() []TartarusRecord { return l.records }
