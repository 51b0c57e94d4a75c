package recycler

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ProtectedSet holds locomotive addresses that are never reclaimed.
type ProtectedSet map[int]struct{}

func (p ProtectedSet) Contains(addr int) bool {
	_, ok := p[addr]
	return ok
}

// LoadProtected reads one address per line from path. Blank lines, lines
// starting with '#', and lines that do not parse as integers are ignored.
// A missing file yields an empty set; any other read failure is returned.
func LoadProtected(path string) (ProtectedSet, error) {
	set := make(ProtectedSet)
	if path == "" {
		return set, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("open protected list: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		addr, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		set[addr] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read protected list: %w", err)
	}
	return set, nil
}
