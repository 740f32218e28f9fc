// Package domains loads and slices the input domain lists.
package domains

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/xkilldash9x/noticescan/api/schemas"
)

//go:embed top-domains.txt
var embeddedList string

// Builtin returns the bundled top-sites list, ranked in file order.
func Builtin() []schemas.Domain {
	return parse(embeddedList)
}

// FromFile reads a newline-separated list of domains. Blank lines and lines
// starting with '#' are skipped; order in the file defines rank.
func FromFile(path string) ([]schemas.Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domains file: %w", err)
	}
	list := parse(string(data))
	if len(list) == 0 {
		return nil, fmt.Errorf("domains file %s contains no domains", path)
	}
	return list, nil
}

// Slice applies a 1-based inclusive rank window. end == 0 means "to the end".
// Out-of-range windows clamp rather than error so partial reruns are easy.
func Slice(list []schemas.Domain, start, end int) []schemas.Domain {
	if start < 1 {
		start = 1
	}
	if end == 0 || end > len(list) {
		end = len(list)
	}
	if start > len(list) || start > end {
		return nil
	}
	return list[start-1 : end]
}

func parse(raw string) []schemas.Domain {
	var out []schemas.Domain
	rank := 0
	for _, line := range strings.Split(raw, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		// Tolerate "rank,domain" CSV rows from exported ranking lists.
		if i := strings.LastIndex(name, ","); i >= 0 {
			name = strings.TrimSpace(name[i+1:])
		}
		rank++
		out = append(out, schemas.Domain{Rank: rank, Name: name})
	}
	return out
}
