package s1_sector

import (
	"strings"

	"github.com/wonny/sectorpulse/backend/internal/contracts"
)

// InferIndexCode returns the code of the first rule whose keyword appears in name
func InferIndexCode(name string, rules []IndexRule) (string, bool) {
	name = Normalize(name)
	for _, rule := range rules {
		if strings.Contains(name, rule.Keyword) {
			return rule.Code, true
		}
	}
	return "", false
}

// ResolveIndexCode returns the sector's index code.
// An explicit or previously cached code always wins; otherwise keyword inference is used.
// inferred reports whether the code came from inference (and so needs write-back).
func ResolveIndexCode(def contracts.SectorDefinition, rules []IndexRule) (code string, inferred bool, ok bool) {
	if def.HasIndexCode() {
		return def.IndexCode, false, true
	}
	code, ok = InferIndexCode(def.Name, rules)
	return code, ok, ok
}

// CodeBackfill is a pending write of an inferred index code onto a sector
type CodeBackfill struct {
	SectorID string
	Name     string
	Code     string
}

// PlanBackfill lists sectors without a code that inference can resolve.
// Sectors that already carry a code never appear, so applying the plan is idempotent.
func PlanBackfill(defs []contracts.SectorDefinition, rules []IndexRule) (plan []CodeBackfill, unresolved []string) {
	for _, def := range defs {
		code, inferred, ok := ResolveIndexCode(def, rules)
		switch {
		case !ok:
			unresolved = append(unresolved, def.ID)
		case inferred:
			plan = append(plan, CodeBackfill{SectorID: def.ID, Name: def.Name, Code: code})
		}
	}
	return plan, unresolved
}

// Apply returns definitions with the planned codes filled in
func Apply(defs []contracts.SectorDefinition, plan []CodeBackfill) []contracts.SectorDefinition {
	codes := make(map[string]string, len(plan))
	for _, p := range plan {
		codes[p.SectorID] = p.Code
	}
	out := make([]contracts.SectorDefinition, len(defs))
	for i, def := range defs {
		if code, ok := codes[def.ID]; ok && !def.HasIndexCode() {
			def.IndexCode = code
		}
		out[i] = def
	}
	return out
}

// Indexed returns only the sectors that carry an index code
func Indexed(defs []contracts.SectorDefinition) []contracts.SectorDefinition {
	out := make([]contracts.SectorDefinition, 0, len(defs))
	for _, def := range defs {
		if def.HasIndexCode() {
			out = append(out, def)
		}
	}
	return out
}
