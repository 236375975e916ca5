package surface

import (
	"fmt"
	"strings"
)

// BlockStatus is the outcome of one PerformTest call.
type BlockStatus int

// Block outcomes. Untested means the range was not evaluated because the test
// was cancelled; it is neither a success nor a failure.
const (
	Untested BlockStatus = iota
	OK
	OverwriteOK
	Damaged
	IOError
)

func (s BlockStatus) String() string {
	switch s {
	case Untested:
		return "Untested"
	case OK:
		return "OK"
	case OverwriteOK:
		return "Overwrite OK"
	case Damaged:
		return "Damaged"
	case IOError:
		return "IO Error"
	default:
		return fmt.Sprintf("BlockStatus(%d)", int(s))
	}
}

// AllStatuses lists every BlockStatus in display order.
var AllStatuses = []BlockStatus{Untested, OK, OverwriteOK, Damaged, IOError}

// TestKind selects the algorithm run by a Tester.
type TestKind int

// Test algorithms.
const (
	Read TestKind = iota
	ReadWipeDamagedRead
	ReadWriteVerifyRestore
	WriteVerify
	Write
	Verify
)

var kindNames = map[TestKind]string{
	Read:                   "read",
	ReadWipeDamagedRead:    "read-wipe-damaged-read",
	ReadWriteVerifyRestore: "read-write-verify-restore",
	WriteVerify:            "write-verify",
	Write:                  "write",
	Verify:                 "verify",
}

var kindAliases = map[string]TestKind{
	"wipe":    ReadWipeDamagedRead,
	"restore": ReadWriteVerifyRestore,
}

func (k TestKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TestKind(%d)", int(k))
}

// Title is the human readable test name used in the run log.
func (k TestKind) Title() string {
	switch k {
	case Read:
		return "Read"
	case ReadWipeDamagedRead:
		return "Read + Wipe Damaged + Read"
	case ReadWriteVerifyRestore:
		return "Read + Write + Verify + Restore"
	case WriteVerify:
		return "Write + Verify"
	case Write:
		return "Write"
	case Verify:
		return "Verify"
	default:
		return k.String()
	}
}

// Writes reports whether the algorithm issues writes to the device.
func (k TestKind) Writes() bool {
	switch k {
	case Read, Verify:
		return false
	default:
		return true
	}
}

// Destructive reports whether the algorithm leaves the original data
// overwritten when it completes.
func (k TestKind) Destructive() bool {
	return k == WriteVerify || k == Write
}

// ParseTestKind accepts the names printed by TestKind.String plus a few short
// aliases.
func ParseTestKind(s string) (TestKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown test %q", s)
}

// TestKindNames returns the canonical names in declaration order.
func TestKindNames() []string {
	names := make([]string, 0, len(kindNames))
	for k := Read; k <= Verify; k++ {
		names = append(names, kindNames[k])
	}
	return names
}
