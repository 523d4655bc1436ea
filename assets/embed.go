// apps/duel-server/assets/embed.go
//
// Default word corpus compiled into the binary, and the line format shared by
// every word file: one word per line, blank lines and # comments skipped.

package assets

import (
	"bufio"
	"embed"
	"io"
	"strings"
)

// Names of the embedded lists.
const (
	AnswersFile = "answers.txt"
	AllowedFile = "allowed.txt"
)

//go:embed allowed.txt answers.txt
var files embed.FS

// ParseWords reads a word file. Entries are trimmed; validation and case
// folding are left to the caller.
func ParseWords(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// Corpus returns the embedded secret-word pool and the extra accepted guesses.
func Corpus() (answers, allowed []string, err error) {
	if answers, err = readEmbedded(AnswersFile); err != nil {
		return nil, nil, err
	}
	if allowed, err = readEmbedded(AllowedFile); err != nil {
		return nil, nil, err
	}
	return answers, allowed, nil
}

func readEmbedded(name string) ([]string, error) {
	f, err := files.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseWords(f)
}
