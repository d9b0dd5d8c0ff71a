// Package contract handles futures contract-code parsing and the explicit
// contract→commodity lookup table used by every calculator path.
//
// The table is populated once at ingestion time from quote payloads that
// carry their commodity. Inferring the commodity by stripping the trailing
// expiry digits remains available as a fallback, but it is an approximation:
// codes sharing a prefix (e.g. "I" iron ore vs "IC" index futures) can be
// misclassified, which is exactly why the table exists.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// codeRegex matches a contract code: 1-2 letters followed by a 3-4 digit
// expiry, e.g. "cu2409", "m2501", "SC409".
var codeRegex = regexp.MustCompile(`^([A-Za-z]{1,2})([0-9]{3,4})$`)

var (
	ErrInvalidCode = errors.New("contract: invalid contract code format")
	ErrUnknownCode = errors.New("contract: no commodity registered for code")
)

// StripExpiry removes the trailing expiry digits from a contract code,
// returning the bare commodity symbol. This is the legacy inference path;
// prefer Table lookups wherever a registration exists.
func StripExpiry(code string) string {
	return strings.TrimRight(code, "0123456789")
}

// Parse validates a contract code and splits it into symbol and expiry.
func Parse(code string) (symbol, expiry string, err error) {
	matches := codeRegex.FindStringSubmatch(code)
	if matches == nil {
		return "", "", fmt.Errorf("%w: %q (expected {symbol}{YYMM})", ErrInvalidCode, code)
	}
	return matches[1], matches[2], nil
}

// Table is the explicit contract→commodity registry. Registrations are
// keyed by bare symbol (expiry stripped), so one registration covers every
// expiry month of a commodity.
type Table struct {
	mu       sync.RWMutex
	bySymbol map[string]string // lower-cased symbol → commodity name
}

// NewTable creates an empty registry.
func NewTable() *Table {
	return &Table{bySymbol: make(map[string]string)}
}

// Register maps a contract code (or bare symbol) to its commodity name.
// Later registrations for the same symbol overwrite earlier ones.
func (t *Table) Register(code, commodity string) {
	symbol := strings.ToLower(StripExpiry(code))
	if symbol == "" || commodity == "" {
		return
	}
	t.mu.Lock()
	t.bySymbol[symbol] = commodity
	t.mu.Unlock()
}

// Commodity resolves a contract code to its commodity name. A registered
// symbol wins; otherwise the stripped symbol itself is returned as the
// approximate commodity name, with ok=false so callers can tell inference
// from an authoritative mapping.
func (t *Table) Commodity(code string) (name string, ok bool) {
	symbol := strings.ToLower(StripExpiry(code))
	t.mu.RLock()
	name, ok = t.bySymbol[symbol]
	t.mu.RUnlock()
	if ok {
		return name, true
	}
	return symbol, false
}

// BelongsTo reports whether a contract code belongs to the given commodity.
// Registered symbols are matched exactly; unregistered codes fall back to
// comparing the stripped symbol case-insensitively.
func (t *Table) BelongsTo(code, commodity string) bool {
	name, _ := t.Commodity(code)
	return strings.EqualFold(name, commodity)
}

// Commodities returns the distinct registered commodity names, sorted.
func (t *Table) Commodities() []string {
	t.mu.RLock()
	seen := make(map[string]bool, len(t.bySymbol))
	for _, name := range t.bySymbol {
		seen[name] = true
	}
	t.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
