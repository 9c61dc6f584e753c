// Package approval builds and parses the approval call that key servers
// hand to the ledger before releasing a share. The call is opaque to the
// client: it names the gate function and its public arguments, nothing more.
package approval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/identity"
	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformedProof = errors.New("malformed approval proof")

// Field numbers of the wire encoding.
const (
	fieldTarget   protowire.Number = 1
	fieldLetterID protowire.Number = 2
	fieldPolicy   protowire.Number = 3
	fieldClock    protowire.Number = 4
)

// Call is a decoded approval request.
type Call struct {
	Target         string
	LetterID       uint64
	PolicyObjectID string
	ClockRef       string
}

// Target returns "<programID>::mandy::seal_approve".
func Target(programID string) string {
	return programID + "::" + common.ApprovalModule + "::" + common.ApprovalFunction
}

// Gate builds approval proofs for one program.
type Gate struct {
	programID string
}

func NewGate(programID string) *Gate {
	return &Gate{programID: programID}
}

// BuildApprovalProof encodes the call descriptor. Equal inputs always yield
// byte-identical output.
func (g *Gate) BuildApprovalProof(letterID uint64, policyObjectID, clockRef string) ([]byte, error) {
	if g.programID == "" {
		return nil, errors.New("approval gate: program id is empty")
	}
	if _, err := identity.PolicyBytes(policyObjectID); err != nil {
		return nil, fmt.Errorf("approval gate: %w", err)
	}
	if strings.TrimSpace(clockRef) == "" {
		return nil, errors.New("approval gate: clock reference is empty")
	}

	call := Call{
		Target:         Target(g.programID),
		LetterID:       letterID,
		PolicyObjectID: normalizeObjectID(policyObjectID),
		ClockRef:       normalizeObjectID(clockRef),
	}
	return call.Marshal(), nil
}

// Marshal encodes c in field order.
func (c Call) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTarget, protowire.BytesType)
	b = protowire.AppendString(b, c.Target)
	b = protowire.AppendTag(b, fieldLetterID, protowire.VarintType)
	b = protowire.AppendVarint(b, c.LetterID)
	b = protowire.AppendTag(b, fieldPolicy, protowire.BytesType)
	b = protowire.AppendString(b, c.PolicyObjectID)
	b = protowire.AppendTag(b, fieldClock, protowire.BytesType)
	b = protowire.AppendString(b, c.ClockRef)
	return b
}

// Parse decodes a proof produced by BuildApprovalProof.
func Parse(b []byte) (*Call, error) {
	var c Call
	var seen int
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformedProof
		}
		b = b[n:]

		switch {
		case num == fieldLetterID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, ErrMalformedProof
			}
			c.LetterID = v
			b = b[m:]
			seen++
		case (num == fieldTarget || num == fieldPolicy || num == fieldClock) && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, ErrMalformedProof
			}
			switch num {
			case fieldTarget:
				c.Target = v
			case fieldPolicy:
				c.PolicyObjectID = v
			case fieldClock:
				c.ClockRef = v
			}
			b = b[m:]
			seen++
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, ErrMalformedProof
			}
			b = b[m:]
		}
	}

	if seen < 4 || c.Target == "" || c.PolicyObjectID == "" || c.ClockRef == "" {
		return nil, ErrMalformedProof
	}
	return &c, nil
}

// normalizeObjectID lower-cases an object id and makes sure it starts with 0x.
func normalizeObjectID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return id
}

// SameObject compares two object ids ignoring case and the 0x prefix.
func SameObject(a, b string) bool {
	return normalizeObjectID(a) == normalizeObjectID(b)
}
